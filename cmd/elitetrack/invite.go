package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/spf13/cobra"
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Manage project invites",
	Long:  "Generate, inspect and revoke the invites vehicle owners use to create their accounts",
}

var (
	inviteProject    string
	invitePlate      string
	inviteVehicle    string
	inviteOwnerName  string
	inviteOwnerEmail string
	inviteOwnerPhone string
)

func resetInviteFlags() {
	inviteProject, invitePlate, inviteVehicle = "", "", ""
	inviteOwnerName, inviteOwnerEmail, inviteOwnerPhone = "", "", ""
}

var inviteGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an invite for a vehicle owner",
	Long:  "Generate a single-use invite for a project. Requires an executor or admin account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetInviteFlags()

		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}
		inv, err := ac.GenerateInvite(cmd.Context(), invite.GenerateRequest{
			ProjectID:    inviteProject,
			VehiclePlate: invitePlate,
			VehicleInfo:  inviteVehicle,
			Owner: invite.Owner{
				Name:  inviteOwnerName,
				Email: inviteOwnerEmail,
				Phone: inviteOwnerPhone,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to generate invite: %w", err)
		}

		cmd.Printf("Invite token: %s\n", inv.Token)
		cmd.Printf("Invite ID:    %s\n", inv.ID)
		cmd.Printf("Expires:      %s\n", inv.ExpiresAt.Local().Format(time.RFC3339))
		return nil
	},
}

var inviteValidateCmd = &cobra.Command{
	Use:   "validate <token>",
	Short: "Check an invite token without using it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}
		v, err := ac.ValidateInvite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Status:  %s\n", v.Status)
		cmd.Printf("Project: %s\n", v.Invite.ProjectID)
		cmd.Printf("Owner:   %s\n", v.Invite.OwnerName)
		if v.Invite.VehiclePlate != "" {
			cmd.Printf("Vehicle: %s %s\n", v.Invite.VehicleInfo, v.Invite.VehiclePlate)
		}
		cmd.Printf("Expires: %s\n", v.Invite.ExpiresAt.Local().Format(time.RFC3339))
		return nil
	},
}

var inviteRevokeCmd = &cobra.Command{
	Use:   "revoke <invite-id>",
	Short: "Revoke a pending invite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}
		if err := ac.RevokeInvite(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to revoke invite: %w", err)
		}
		cmd.Printf("Invite %s revoked.\n", args[0])
		return nil
	},
}

var inviteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invites",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetInviteFlags()

		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}
		views, err := ac.ListInvites(cmd.Context(), inviteProject)
		if err != nil {
			return err
		}
		if len(views) == 0 {
			cmd.Println("No invites found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tOWNER\tSTATUS\tEXPIRES")
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.ProjectID, v.OwnerName, v.Effective,
				v.ExpiresAt.Local().Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var tempPasswordCmd = &cobra.Command{
	Use:   "temp-password <email>",
	Short: "Issue a temporary first-login password",
	Long:  "Issue a single-use temporary password for an owner. They must choose a new password after signing in with it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetInviteFlags()

		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}
		issued, err := ac.IssueTempPassword(cmd.Context(), args[0], inviteProject)
		if err != nil {
			return fmt.Errorf("failed to issue temporary password: %w", err)
		}
		cmd.Printf("Temporary password for %s: %s\n", issued.Email, issued.Password)
		cmd.Printf("Valid until %s\n", issued.ExpiresAt.Local().Format(time.RFC3339))
		return nil
	},
}

func init() {
	f := inviteGenerateCmd.Flags()
	f.StringVar(&inviteProject, "project", "", "Project code (e.g. PRJ-2024-001)")
	f.StringVar(&invitePlate, "plate", "", "Vehicle plate")
	f.StringVar(&inviteVehicle, "vehicle", "", "Vehicle description")
	f.StringVar(&inviteOwnerName, "owner-name", "", "Owner name")
	f.StringVar(&inviteOwnerEmail, "owner-email", "", "Owner email")
	f.StringVar(&inviteOwnerPhone, "owner-phone", "", "Owner phone")
	_ = inviteGenerateCmd.MarkFlagRequired("project")
	_ = inviteGenerateCmd.MarkFlagRequired("owner-name")

	inviteListCmd.Flags().StringVar(&inviteProject, "project", "", "Only list invites for this project")
	tempPasswordCmd.Flags().StringVar(&inviteProject, "project", "", "Project code the owner belongs to")

	inviteCmd.AddCommand(inviteGenerateCmd, inviteValidateCmd, inviteRevokeCmd, inviteListCmd)
	rootCmd.AddCommand(inviteCmd, tempPasswordCmd)
}
