package commands

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Print the account's identity keys and unpublished one-time keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vp.GetString("user") == "" || vp.GetString("device") == "" {
				return errors.New("--user and --device are required")
			}
			o, err := openFacade()
			if err != nil {
				return err
			}

			identity := o.IdentityKeys()
			algos := make([]string, 0, len(identity))
			for algo := range identity {
				algos = append(algos, algo)
			}
			sort.Strings(algos)
			fmt.Println("identity keys:")
			for _, algo := range algos {
				fmt.Printf("  %s: %s\n", algo, identity[algo])
			}

			oneTime := o.Account.OneTimeKeys()
			ids := make([]string, 0, len(oneTime))
			for id := range oneTime {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			fmt.Printf("one-time keys pending upload: %d\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s: %s\n", id, oneTime[id])
			}

			published, err := cmd.Flags().GetBool("mark-published")
			if err != nil {
				return err
			}
			if published {
				if err := o.MarkKeysAsPublished(); err != nil {
					return err
				}
				fmt.Println("one-time key pool marked as published")
			}
			return nil
		},
	}
	cmd.Flags().Bool("mark-published", false, "flag the one-time key pool as uploaded")
	return cmd
}
