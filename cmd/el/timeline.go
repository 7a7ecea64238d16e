package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eventline/internal/domain"
	"eventline/internal/engine"
	"eventline/internal/schedule"
)

func timelineCmd() *cobra.Command {
	t := &cobra.Command{Use: "timeline", Aliases: []string{"tl"}, Short: "The day's timeline"}
	t.AddCommand(timelineListCmd())
	t.AddCommand(timelineAddCmd())
	t.AddCommand(timelineUpdateCmd())
	t.AddCommand(timelineStatusCmd())
	t.AddCommand(timelineMoveCmd())
	t.AddCommand(timelinePreviewCmd())
	t.AddCommand(timelineRemoveCmd())
	t.AddCommand(timelineNormalizeCmd())
	t.AddCommand(timelineExportCmd())
	return t
}

func timelineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Items in order with derived times",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				view, err := e.Timeline(ctx, eventID, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				renderTimeline(view)
				return nil
			})
		},
	}
}

func renderTimeline(view engine.TimelineView) {
	tw := newTable(table.Row{"#", "Time", "End", "Title", "Min", "Status", "Priority", "People", "Vendors", "ID"})
	for i, it := range view.Items {
		end := ""
		if i < len(view.Timings) {
			end = view.Timings[i].End
			if d := view.Timings[i].DayOffset; d > 0 {
				end += fmt.Sprintf(" (+%d)", d)
			}
		}
		tw.AppendRow(table.Row{
			it.OrderIndex, it.Time, end, it.Title, it.Duration, it.Status, it.Priority,
			strings.Join(it.AssignedPersonIDs, ","), strings.Join(it.AssignedVendorIDs, ","), it.ID,
		})
	}
	tw.AppendFooter(table.Row{"", "", view.Summary.EndOfDay, "total", view.Summary.Formatted, "", "", "", "", fmt.Sprintf("v%d", view.Summary.Version)})
	tw.Render()
	if view.Summary.CrossesMidnight {
		fmt.Println("note: the schedule runs past midnight")
	}
}

type itemFlags struct {
	title       string
	description string
	time        string
	duration    int
	category    string
	priority    string
	people      []string
	vendors     []string
	role        string
	notes       string
}

func (f *itemFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "item title")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.time, "time", "", "start time HH:MM (first item only)")
	cmd.Flags().IntVar(&f.duration, "duration", 0, "duration in minutes")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().StringVar(&f.priority, "priority", "", "high|medium|low")
	cmd.Flags().StringSliceVar(&f.people, "person", nil, "assigned person id (repeatable)")
	cmd.Flags().StringSliceVar(&f.vendors, "vendor", nil, "assigned vendor id (repeatable)")
	cmd.Flags().StringVar(&f.role, "role", "", "assigned role label")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes")
}

func (f *itemFlags) patch(cmd *cobra.Command) domain.ItemPatch {
	p := domain.ItemPatch{
		Title:        optionalString(cmd, "title", f.title),
		Description:  optionalString(cmd, "description", f.description),
		Time:         optionalString(cmd, "time", f.time),
		Category:     optionalString(cmd, "category", f.category),
		Priority:     optionalString(cmd, "priority", f.priority),
		AssignedRole: optionalString(cmd, "role", f.role),
		Notes:        optionalString(cmd, "notes", f.notes),
	}
	if cmd.Flags().Changed("duration") {
		p.Duration = &f.duration
	}
	if cmd.Flags().Changed("person") {
		p.AssignedPersonIDs = &f.people
	}
	if cmd.Flags().Changed("vendor") {
		p.AssignedVendorIDs = &f.vendors
	}
	return p
}

func change(actor string, ifVersion int64) engine.Change {
	return engine.Change{ActorID: actor, IfVersion: ifVersion}
}

func timelineAddCmd() *cobra.Command {
	var f itemFlags
	var ifVersion int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append an item to the timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			item := domain.TimelineItem{
				Title:             f.title,
				Description:       f.description,
				Time:              f.time,
				Duration:          f.duration,
				Category:          f.category,
				Priority:          f.priority,
				AssignedPersonIDs: f.people,
				AssignedVendorIDs: f.vendors,
				AssignedRole:      f.role,
				Notes:             f.notes,
			}
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				out, err := e.AddItem(ctx, eventID, item, change(actor, ifVersion))
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().Int64Var(&ifVersion, "if-version", 0, "fail unless the timeline is at this version")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func timelineUpdateCmd() *cobra.Command {
	var f itemFlags
	var ifVersion int64
	cmd := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Change fields of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := f.patch(cmd)
			if patch.Empty() {
				return fmt.Errorf("nothing to update")
			}
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				out, err := e.UpdateItem(ctx, eventID, args[0], patch, change(actor, ifVersion))
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().Int64Var(&ifVersion, "if-version", 0, "fail unless the timeline is at this version")
	return cmd
}

func timelineStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <item-id> <scheduled|in_progress|completed|delayed>",
		Short: "Set the status of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				out, err := e.SetItemStatus(ctx, eventID, args[0], args[1], change(actor, 0))
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", out.ID, out.Status)
				return nil
			})
		},
	}
}

func timelineMoveCmd() *cobra.Command {
	var to int
	var ifVersion int64
	cmd := &cobra.Command{
		Use:   "move <item-id>",
		Short: "Move an item to another position; times follow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				view, err := e.MoveItem(ctx, eventID, args[0], to, change(actor, ifVersion))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				renderTimeline(view)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&to, "to", 0, "target position (0-based)")
	cmd.Flags().Int64Var(&ifVersion, "if-version", 0, "fail unless the timeline is at this version")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func timelinePreviewCmd() *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the times a move would produce without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				slots, err := e.PreviewMove(ctx, eventID, from, to, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(slots)
				}
				view, err := e.Timeline(ctx, eventID, actor)
				if err != nil {
					return err
				}
				tw := newTable(table.Row{"Title", "Now", "After", "ID"})
				for _, it := range previewOrder(view.Items, from, to) {
					s := slots[it.ID]
					tw.AppendRow(table.Row{it.Title, it.Time, s.Start + "-" + s.End, it.ID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "current position")
	cmd.Flags().IntVar(&to, "to", 0, "target position")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// previewOrder lists items in the order they would have after the move.
func previewOrder(items []domain.TimelineItem, from, to int) []domain.TimelineItem {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return items
	}
	out := append([]domain.TimelineItem(nil), items...)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]domain.TimelineItem{moved}, out[to:]...)...)
	return out
}

func timelineRemoveCmd() *cobra.Command {
	var ifVersion int64
	cmd := &cobra.Command{
		Use:   "rm <item-id>",
		Short: "Remove an item; later items move up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				return e.RemoveItem(ctx, eventID, args[0], change(actor, ifVersion))
			})
		},
	}
	cmd.Flags().Int64Var(&ifVersion, "if-version", 0, "fail unless the timeline is at this version")
	return cmd
}

func timelineNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Rewrite stored times and positions from the sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				n, err := e.NormalizeTimeline(ctx, eventID, change(actor, 0))
				if err != nil {
					return err
				}
				fmt.Printf("%d item(s) rewritten\n", n)
				return nil
			})
		},
	}
}

func timelineExportCmd() *cobra.Command {
	var v schedule.Viewer
	var mode, out string
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export the schedule as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if v.Kind == "" {
				v.Kind = schedule.ViewerAdmin
			}
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				body, err := e.ExportCalendar(ctx, eventID, v, schedule.ParseMode(mode), actor)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = fmt.Fprint(os.Stdout, body)
					return err
				}
				if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&v.Kind, "viewer-kind", "", "admin|person|vendor|guest")
	cmd.Flags().StringVar(&v.ID, "viewer-id", "", "person or vendor id")
	cmd.Flags().StringVar(&v.Role, "viewer-role", "", "role label")
	cmd.Flags().StringVar(&mode, "mode", "global", "personal|global")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}
