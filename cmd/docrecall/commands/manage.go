package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteDocumentCmd(st *state) *cobra.Command {
	var documentID int64

	cmd := &cobra.Command{
		Use:   "delete-document",
		Short: "Delete every chunk of a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := st.openApp(ctx)
			if err != nil {
				return fmt.Errorf("delete-document: %w", err)
			}
			defer func() { _ = a.Close() }()

			if err := a.service.DeleteDocument(ctx, documentID); err != nil {
				return fmt.Errorf("delete-document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %d deleted\n", documentID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&documentID, "document", 0, "Document id")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func newDeleteOwnerCmd(st *state) *cobra.Command {
	var ownerID int64

	cmd := &cobra.Command{
		Use:   "delete-owner",
		Short: "Delete every chunk belonging to a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := st.openApp(ctx)
			if err != nil {
				return fmt.Errorf("delete-owner: %w", err)
			}
			defer func() { _ = a.Close() }()

			if err := a.service.DeleteOwner(ctx, ownerID); err != nil {
				return fmt.Errorf("delete-owner: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "owner %d deleted\n", ownerID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Owner (user) id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newConfirmCmd(st *state) *cobra.Command {
	var documentID int64
	var unconfirm bool

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Mark a document's chunks as confirmed (or unconfirmed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := st.openApp(ctx)
			if err != nil {
				return fmt.Errorf("confirm: %w", err)
			}
			defer func() { _ = a.Close() }()

			n, err := a.service.SetConfirmed(ctx, documentID, !unconfirm)
			if err != nil {
				return fmt.Errorf("confirm: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %d: %d chunks updated (confirmed=%v)\n", documentID, n, !unconfirm)
			return nil
		},
	}
	cmd.Flags().Int64Var(&documentID, "document", 0, "Document id")
	cmd.Flags().BoolVar(&unconfirm, "unconfirm", false, "Clear the confirmed flag instead")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}
