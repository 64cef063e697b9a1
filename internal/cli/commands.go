package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/task-tracker/internal/model"
	"github.com/BuzzLyutic/task-tracker/internal/store"
)

func (a *app) listCmd() *cobra.Command {
	var status, sortBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := store.ViewOptions{}
			if status != "" {
				s, err := model.ParseStatus(status)
				if err != nil {
					return err
				}
				opts.Status = &s
			}
			by, ok := store.ParseSortBy(sortBy)
			if !ok {
				return fmt.Errorf("unknown sort order %q", sortBy)
			}
			opts.SortBy = by

			if err := a.load(cmd.Context()); err != nil {
				a.printCounts()
				return err
			}
			tasks := a.coord.View(opts)
			if len(tasks) == 0 {
				fmt.Fprintln(a.out, a.styles.faint.Render("No tasks"))
			}
			for _, t := range tasks {
				a.printTask(t)
			}
			a.printCounts()
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "only show tasks with this status (todo, in-progress, done)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort by priority, due or created")
	return cmd
}

type taskFlags struct {
	desc     string
	status   string
	priority string
	estimate int
	due      string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.desc, "desc", "d", "", "description")
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "status (todo, in-progress, done)")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "priority (low, medium, high, urgent or 0-3)")
	cmd.Flags().IntVarP(&f.estimate, "estimate", "e", 0, "estimated minutes")
	cmd.Flags().StringVar(&f.due, "due", "", "due date (2006-01-02, 2006-01-02T15:04 or RFC 3339)")
}

func (a *app) addCmd() *cobra.Command {
	var f taskFlags

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := model.TaskDraft{
				Title:       strings.Join(args, " "),
				Description: f.desc,
			}
			if f.status != "" {
				s, err := model.ParseStatus(f.status)
				if err != nil {
					return err
				}
				d.Status = s
			}
			if f.priority != "" {
				p, err := model.ParsePriority(f.priority)
				if err != nil {
					return err
				}
				d.Priority = p
			}
			if cmd.Flags().Changed("estimate") {
				est := f.estimate
				d.EstimatedMinutes = &est
			}
			if f.due != "" {
				due, err := parseDue(f.due)
				if err != nil {
					return err
				}
				d.DueAt = &due
			}

			_ = a.load(cmd.Context())
			t, err := a.coord.Create(cmd.Context(), d)
			if err == nil {
				a.printTask(t)
			}
			a.finish()
			return err
		},
	}

	f.register(cmd)
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var (
		f     taskFlags
		title string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Long: `Change fields of a task. Only the flags given are sent.
Pass --estimate 0 or --due none to clear those fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var p model.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				p.Title = &title
			}
			if flags.Changed("desc") {
				p.Description = &f.desc
			}
			if flags.Changed("status") {
				s, err := model.ParseStatus(f.status)
				if err != nil {
					return err
				}
				p.Status = &s
			}
			if flags.Changed("priority") {
				pr, err := model.ParsePriority(f.priority)
				if err != nil {
					return err
				}
				p.Priority = &pr
			}
			if flags.Changed("estimate") {
				if f.estimate == 0 {
					p.EstimatedMinutes = model.ClearField[int]()
				} else {
					p.EstimatedMinutes = model.SetField(f.estimate)
				}
			}
			if flags.Changed("due") {
				if f.due == "" || strings.EqualFold(f.due, "none") {
					p.DueAt = model.ClearField[time.Time]()
				} else {
					due, err := parseDue(f.due)
					if err != nil {
						return err
					}
					p.DueAt = model.SetField(due)
				}
			}
			if p.Empty() {
				return fmt.Errorf("nothing to change")
			}

			return a.update(cmd, id, p)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVarP(&title, "title", "t", "", "title")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a task to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return a.update(cmd, id, model.StatusPatch(s))
		},
	}
}

func (a *app) update(cmd *cobra.Command, id int64, p model.TaskPatch) error {
	_ = a.load(cmd.Context())
	t, err := a.coord.Update(cmd.Context(), id, p)
	if err == nil {
		a.printTask(t)
	}
	a.finish()
	return err
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_ = a.load(cmd.Context())
			err = a.coord.Delete(cmd.Context(), id)
			a.finish()
			return err
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts computed by the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range model.Statuses {
				fmt.Fprintf(a.out, "%-12s %d\n", s.Label()+":", stats.ByStatus[string(s)])
			}
			fmt.Fprintf(a.out, "%-12s %d\n", "Total:", stats.TotalTasks)
			return nil
		},
	}
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(v, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", v)
	}
	return id, nil
}
