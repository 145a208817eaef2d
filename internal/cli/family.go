package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"usos/internal/models"
)

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all families, users, requests, expenses and goals",
		Long: `Delete every row of every table.

Without --yes the command asks for confirmation on stdin.

Examples:
  usos-admin reset
  usos-admin reset --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd, "WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
				fmt.Fprintln(cmd.ErrOrStderr(), "Reset cancelled")
				return nil
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.Admin.ResetAll(cmd.Context())
			if err != nil {
				return failed("reset failed", err)
			}

			var total int64
			for _, n := range deleted {
				total += n
			}
			return opts.output(cmd).Success(deleted, fmt.Sprintf("Deleted %d rows", total))
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

// NewCreateFamilyCommand creates the create-family command.
func NewCreateFamilyCommand(opts *RootOptions) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "create-family",
		Short: "Create an empty family",
		Long: `Create a family with no members. A random invite code is drawn unless
--code is given.

Examples:
  usos-admin create-family
  usos-admin create-family --code ABC234`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			family, err := a.Admin.CreateFamily(cmd.Context(), code)
			if err != nil {
				return failed("failed to create family", err)
			}
			return opts.output(cmd).Success(family,
				fmt.Sprintf("Created family %s with invite code %s", family.ID, family.InviteCode))
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "invite code to use instead of a random one")
	return cmd
}

// NewLinkPartnersCommand creates the link-partners command.
func NewLinkPartnersCommand(opts *RootOptions) *cobra.Command {
	var familyID string

	cmd := &cobra.Command{
		Use:   "link-partners <user-a> <user-b>",
		Short: "Pair two users inside a family",
		Long: `Place both users in the family and make them partners, overwriting
any previous membership. Other members leave the family and former partners
are unlinked.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Admin.LinkPartners(cmd.Context(), args[0], args[1], familyID); err != nil {
				return failed("failed to link partners", err)
			}
			family, err := a.Pairing.GetFamily(cmd.Context(), familyID)
			if err != nil {
				return failed("failed to load family", err)
			}
			return opts.output(cmd).Success(family,
				fmt.Sprintf("Linked %s and %s in family %s", args[0], args[1], familyID))
		},
	}

	cmd.Flags().StringVar(&familyID, "family", "", "family id (required)")
	_ = cmd.MarkFlagRequired("family")
	return cmd
}

// NewListFamiliesCommand creates the families command.
func NewListFamiliesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List every family with its members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			families, err := a.Admin.ListFamilies(cmd.Context())
			if err != nil {
				return failed("failed to list families", err)
			}

			out := make([]*models.FamilyWithMembers, 0, len(families))
			var text strings.Builder
			for _, f := range families {
				full, err := a.Pairing.GetFamily(cmd.Context(), f.ID)
				if err != nil {
					return failed("failed to load family", err)
				}
				out = append(out, full)

				names := make([]string, 0, len(full.Members))
				for _, m := range full.Members {
					names = append(names, m.DisplayName)
				}
				fmt.Fprintf(&text, "%s  %s  %d/%d  %s\n", f.ID, f.InviteCode, len(full.Members), models.MaxFamilyMembers, strings.Join(names, ", "))
			}
			if len(families) == 0 {
				text.WriteString("No families\n")
			}
			return opts.output(cmd).Success(out, strings.TrimRight(text.String(), "\n"))
		},
	}
}

// NewExpireRequestsCommand creates the expire-requests command.
func NewExpireRequestsCommand(opts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "expire-requests",
		Short: "Decline pending join requests older than the TTL",
		Long: `Decline pending join requests older than JOIN_REQUEST_TTL, or older than
--older-than when given. Nothing expires when neither is set.

Examples:
  usos-admin expire-requests
  usos-admin expire-requests --older-than 72h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var n int64
			if olderThan > 0 {
				n, err = a.Pairing.ExpireRequestsOlderThan(cmd.Context(), olderThan)
			} else {
				n, err = a.Pairing.ExpireStaleRequests(cmd.Context())
			}
			if err != nil {
				return failed("failed to expire join requests", err)
			}
			return opts.output(cmd).Success(map[string]int64{"expired": n},
				fmt.Sprintf("Expired %d join request(s)", n))
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override JOIN_REQUEST_TTL")
	return cmd
}

// NewSettleCommand creates the settle command.
func NewSettleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settle <family-id>",
		Short: "Print the settle-up balance of a family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			settlement, err := a.Ledger.SettleUpForFamily(cmd.Context(), args[0])
			if err != nil {
				return failed("failed to compute settle-up", err)
			}

			text := fmt.Sprintf("Family %s is settled up (total %s)", args[0], settlement.Total)
			if debtor, creditor, amount := settlement.Debtor(); debtor != "" {
				text = fmt.Sprintf("%s owes %s %s (total %s)", debtor, creditor, amount.String(), settlement.Total)
			}
			return opts.output(cmd).Success(settlement, text)
		},
	}
}
