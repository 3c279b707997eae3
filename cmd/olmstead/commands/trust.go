package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"olmstead/internal/domain"
	"olmstead/internal/store"
)

func trustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <user> <device> <fingerprint>",
		Short: "Pin a device fingerprint verified out of band",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := trustStorePath()
			if err != nil {
				return err
			}
			ks, err := store.LoadKeyStore(path)
			if err != nil {
				return err
			}
			added, err := ks.Add(domain.NewEd25519Key(args[0], args[1], args[2]))
			if err != nil {
				return err
			}
			if !added {
				fmt.Printf("%s/%s already pinned\n", args[0], args[1])
				return nil
			}
			fmt.Printf("pinned %s/%s\n", args[0], args[1])
			return nil
		},
	}
}

func distrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distrust <user> <device> <fingerprint>",
		Short: "Drop a pinned fingerprint so the device can be re-verified",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := trustStorePath()
			if err != nil {
				return err
			}
			ks, err := store.LoadKeyStore(path)
			if err != nil {
				return err
			}
			removed, err := ks.Remove(domain.NewEd25519Key(args[0], args[1], args[2]))
			if err != nil {
				return err
			}
			if !removed {
				fmt.Printf("no such pin for %s/%s\n", args[0], args[1])
				return nil
			}
			fmt.Printf("dropped pin for %s/%s\n", args[0], args[1])
			return nil
		},
	}
}
