package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/engine"
)

func eventCmd() *cobra.Command {
	ev := &cobra.Command{Use: "event", Short: "Manage events"}
	ev.AddCommand(eventCreateCmd())
	ev.AddCommand(eventListCmd())
	ev.AddCommand(eventShowCmd())
	ev.AddCommand(eventUpdateCmd())
	ev.AddCommand(eventDeleteCmd())
	ev.AddCommand(eventConfigCmd())
	return ev
}

func eventCreateCmd() *cobra.Command {
	var opts engine.EventCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event owned by the acting organizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor")
				ev, err := e.CreateEvent(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "event id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "event name")
	cmd.Flags().StringVar(&opts.EventDate, "date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA timezone")
	cmd.Flags().StringVar(&opts.Venue, "venue", "", "venue")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func eventListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Events you organize",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evs, err := e.ListEvents(ctx, viper.GetString("actor"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evs)
				}
				tw := newTable(table.Row{"ID", "Name", "Date", "Timezone", "Venue", "Status"})
				for _, ev := range evs {
					tw.AppendRow(table.Row{ev.ID, ev.Name, ev.EventDate, ev.Timezone, ev.Venue, ev.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func eventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				ev, err := e.GetEvent(ctx, eventID, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
}

func eventUpdateCmd() *cobra.Command {
	var name, date, tz, venue, status string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update event fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := domain.EventPatch{
				Name:      optionalString(cmd, "name", name),
				EventDate: optionalString(cmd, "date", date),
				Timezone:  optionalString(cmd, "timezone", tz),
				Venue:     optionalString(cmd, "venue", venue),
				Status:    optionalString(cmd, "status", status),
			}
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				ev, err := e.UpdateEvent(ctx, eventID, patch, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "event name")
	cmd.Flags().StringVar(&date, "date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&tz, "timezone", "", "IANA timezone")
	cmd.Flags().StringVar(&venue, "venue", "", "venue")
	cmd.Flags().StringVar(&status, "status", "", "planning|confirmed|done|archived")
	return cmd
}

func eventDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the event and everything in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				if err := e.DeleteEvent(ctx, eventID, actor); err != nil {
					return err
				}
				fmt.Println("deleted", eventID)
				return nil
			})
		},
	}
}

func eventConfigCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Event planning config"}
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the config as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				cfg, err := e.EventConfig(ctx, eventID, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cfg)
				}
				data, err := cfg.ToYAML()
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			})
		},
	})

	var file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Replace the config from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				if _, err := e.SetEventConfig(ctx, eventID, cfg, actor); err != nil {
					return err
				}
				fmt.Println("config imported for", eventID)
				return nil
			})
		},
	}
	imp.Flags().StringVar(&file, "file", "", "YAML file")
	_ = imp.MarkFlagRequired("file")
	c.AddCommand(imp)
	return c
}

func personCmd() *cobra.Command {
	p := &cobra.Command{Use: "person", Short: "People working the event"}

	var in domain.Person
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				in.EventID = eventID
				out, err := e.CreatePerson(ctx, in, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "full name")
	add.Flags().StringVar(&in.Role, "role", "", "role at the event")
	add.Flags().StringVar(&in.Email, "email", "", "email")
	add.Flags().StringVar(&in.Phone, "phone", "", "phone")
	add.Flags().StringVar(&in.Notes, "notes", "", "notes")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List people",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				people, err := e.ListPeople(ctx, eventID, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(people)
				}
				tw := newTable(table.Row{"ID", "Name", "Role", "Email", "Phone"})
				for _, x := range people {
					tw.AppendRow(table.Row{x.ID, x.Name, x.Role, x.Email, x.Phone})
				}
				tw.Render()
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <person-id>",
		Short: "Remove a person and their assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				return e.DeletePerson(ctx, eventID, args[0], actor)
			})
		},
	}
	p.AddCommand(add, list, rm)
	return p
}

func vendorCmd() *cobra.Command {
	v := &cobra.Command{Use: "vendor", Short: "Vendors booked for the event"}

	var in domain.Vendor
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				in.EventID = eventID
				out, err := e.CreateVendor(ctx, in, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "company name")
	add.Flags().StringVar(&in.ServiceType, "service", "", "service type (catering, music, ...)")
	add.Flags().StringVar(&in.ContactName, "contact", "", "contact person")
	add.Flags().StringVar(&in.Email, "email", "", "email")
	add.Flags().StringVar(&in.Phone, "phone", "", "phone")
	add.Flags().StringVar(&in.Notes, "notes", "", "notes")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				vendors, err := e.ListVendors(ctx, eventID, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(vendors)
				}
				tw := newTable(table.Row{"ID", "Name", "Service", "Contact", "Email", "Phone"})
				for _, x := range vendors {
					tw.AppendRow(table.Row{x.ID, x.Name, x.ServiceType, x.ContactName, x.Email, x.Phone})
				}
				tw.Render()
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <vendor-id>",
		Short: "Remove a vendor and their assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				return e.DeleteVendor(ctx, eventID, args[0], actor)
			})
		},
	}
	v.AddCommand(add, list, rm)
	return v
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
