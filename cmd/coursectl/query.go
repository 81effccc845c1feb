package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/LuisaMG01/course-vectorization/engine/domain"
	"github.com/LuisaMG01/course-vectorization/pkg/bootstrap"
	"github.com/spf13/cobra"
)

func (c *cli) recommendCmd() *cobra.Command {
	var (
		v      domain.Vacancy
		limit  int
		scores bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend courses for a vacancy",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&v.Name, "name", "n", "", "vacancy name")
	cmd.Flags().StringVarP(&v.Description, "description", "d", "", "vacancy description")
	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "number of courses (default from config)")
	cmd.Flags().BoolVar(&scores, "scores", false, "print similarity scores")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		matches, err := app.Service.Recommend(cmd.Context(), v, limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range matches {
			if scores {
				printf(out, "%s\t%.4f\n", m.ID, m.Score)
				continue
			}
			printf(out, "%s\n", m.ID)
		}
		return nil
	})
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>...",
		Short: "Show stored courses",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		lookups, err := app.Service.GetCourses(cmd.Context(), args)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
		var missing int
		for _, l := range lookups {
			if !l.Found {
				missing++
				fmt.Fprintf(tw, "%s\t-\tnot found\n", l.ID)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Course.ID, l.Course.Name, l.Course.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if missing > 0 {
			return fmt.Errorf("%d of %d courses not found", missing, len(lookups))
		}
		return nil
	})
	return cmd
}

func (c *cli) topCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the most recommended courses (needs NEO4J_URL)",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVarP(&limit, "limit", "k", 10, "number of courses")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		if app.Log == nil {
			return fmt.Errorf("recommendation log is disabled; set NEO4J_URL")
		}
		counts, err := app.Log.MostRecommended(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, cc := range counts {
			printf(cmd.OutOrStdout(), "%s\t%d\n", cc.ID, cc.Count)
		}
		return nil
	})
	return cmd
}
