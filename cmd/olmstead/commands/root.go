package commands

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"olmstead/internal/encryption"
)

var (
	vp  = viper.New()
	log *jww.Notepad
)

func Execute() error {
	root := &cobra.Command{
		Use:           "olmstead",
		Short:         "End-to-end encryption session layer CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := vp.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			vp.SetEnvPrefix("olmstead")
			vp.AutomaticEnv()

			if vp.GetString("storage") == "" {
				home, err := homedir.Dir()
				if err != nil {
					return err
				}
				vp.Set("storage", filepath.Join(home, ".olmstead"))
			}
			if err := os.MkdirAll(vp.GetString("storage"), 0o700); err != nil {
				return err
			}

			vp.SetConfigName("config")
			vp.AddConfigPath(vp.GetString("storage"))
			if err := vp.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return err
				}
			}

			threshold := jww.LevelWarn
			if vp.GetBool("verbose") {
				threshold = jww.LevelDebug
			}
			log = jww.NewNotepad(threshold, threshold, os.Stdout, os.Stderr, "olmstead", 0)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("storage", "", "storage dir (default ~/.olmstead)")
	pf.String("user", "", "local user id, e.g. @alice:example.org")
	pf.String("device", "", "local device id")
	pf.StringP("passphrase", "p", "", "passphrase protecting the state file")
	pf.BoolP("verbose", "v", false, "verbose logging")

	root.AddCommand(initCmd(), keysCmd(), devicesCmd(), trustCmd(), distrustCmd())
	return root.Execute()
}

// openFacade builds the Olm facade from resolved configuration.
func openFacade() (*encryption.Olm, error) {
	opts := []encryption.Option{encryption.WithLogger(log)}
	if p := vp.GetString("passphrase"); p != "" {
		opts = append(opts, encryption.WithPassphrase(p))
	}
	return encryption.New(
		vp.GetString("user"),
		vp.GetString("device"),
		vp.GetString("storage"),
		opts...,
	)
}
