package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInstancesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Manage WhatsApp instances",
	}
	cmd.AddCommand(newInstancesListCmd(root))
	cmd.AddCommand(newInstancesCreateCmd(root))
	cmd.AddCommand(newInstancesDeleteCmd(root))
	return cmd
}

func newInstancesListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List instances and their connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instances, err := root.client().ListInstances(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPHONE")
			for _, inst := range instances {
				phone := inst.PhoneNumber
				if phone == "" {
					phone = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inst.ID, inst.Name, inst.Status, phone)
			}
			return w.Flush()
		},
	}
}

func newInstancesCreateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := root.client().CreateInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created instance %s (%s)\n", inst.Name, inst.ID)
			return nil
		},
	}
}

func newInstancesDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <instance-id>",
		Short: "Delete an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.client().DeleteInstance(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "deleted instance %s\n", args[0])
			return nil
		},
	}
}

func newDisconnectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <instance-id>",
		Short: "Disconnect a linked instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.client().Disconnect(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "disconnected instance %s\n", args[0])
			return nil
		},
	}
}

func newRestartCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <instance-id>",
		Short: "Restart an instance's engine session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.client().Restart(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "restarted instance %s\n", args[0])
			return nil
		},
	}
}
