package commands

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"olmstead/internal/store"
)

// trustStorePath mirrors the facade's trust file naming so the listing
// commands can read it without unsealing the state file.
func trustStorePath() (string, error) {
	user, device := vp.GetString("user"), vp.GetString("device")
	if user == "" || device == "" {
		return "", errors.New("--user and --device are required")
	}
	return filepath.Join(vp.GetString("storage"),
		fmt.Sprintf("%s_%s.trusted_devices", user, device)), nil
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List fingerprints pinned in the trust store",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := trustStorePath()
			if err != nil {
				return err
			}
			ks, err := store.LoadKeyStore(path)
			if err != nil {
				return err
			}
			keys := ks.Keys()
			if len(keys) == 0 {
				fmt.Println("no pinned devices")
				return nil
			}
			for _, k := range keys {
				fmt.Printf("%s %s %s %s\n", k.UserID, k.DeviceID, k.Type, k.Value)
			}
			return nil
		},
	}
}
