package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eventline/internal/engine"
)

func shareCmd() *cobra.Command {
	s := &cobra.Command{Use: "share", Short: "Share links for people, vendors and guests"}

	var kind, subject string
	var ttl time.Duration
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a share link and print its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				issued, err := e.CreateShareLink(ctx, engine.ShareCreateOptions{
					EventID:     eventID,
					SubjectKind: kind,
					SubjectID:   subject,
					TTL:         ttl,
					ActorID:     actor,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issued)
				}
				fmt.Printf("link %s (%s %s) expires %s\n", issued.Link.ID, issued.Link.SubjectKind, issued.Link.SubjectID, issued.Link.ExpiresAt)
				fmt.Printf("open /share/%s/timeline\n", issued.Token)
				return nil
			})
		},
	}
	create.Flags().StringVar(&kind, "kind", "", "person|vendor|guest")
	create.Flags().StringVar(&subject, "subject", "", "person or vendor id (empty for guest)")
	create.Flags().DurationVar(&ttl, "ttl", 0, "link lifetime (event default when zero)")
	_ = create.MarkFlagRequired("kind")

	list := &cobra.Command{
		Use:   "list",
		Short: "List share links",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				links, err := e.ListShareLinks(ctx, eventID, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(links)
				}
				tw := newTable(table.Row{"ID", "Kind", "Subject", "Expires", "Revoked"})
				for _, l := range links {
					revoked := ""
					if l.RevokedAt != nil {
						revoked = *l.RevokedAt
					}
					tw.AppendRow(table.Row{l.ID, l.SubjectKind, l.SubjectID, l.ExpiresAt, revoked})
				}
				tw.Render()
				return nil
			})
		},
	}

	token := &cobra.Command{
		Use:   "token <link-id>",
		Short: "Print the token of a live link again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				issued, err := e.ShareToken(ctx, eventID, args[0], actor)
				if err != nil {
					return err
				}
				fmt.Println(issued.Token)
				return nil
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <link-id>",
		Short: "Revoke a share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				link, err := e.RevokeShareLink(ctx, eventID, args[0], actor)
				if err != nil {
					return err
				}
				fmt.Println("revoked", link.ID)
				return nil
			})
		},
	}
	s.AddCommand(create, list, token, revoke)
	return s
}
