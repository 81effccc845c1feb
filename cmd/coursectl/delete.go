package main

import (
	"errors"

	"github.com/LuisaMG01/course-vectorization/pkg/bootstrap"
	"github.com/spf13/cobra"
)

func (c *cli) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete courses by ID",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		for _, id := range args {
			if err := app.Service.DeleteCourse(cmd.Context(), id); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Course with ID %s deleted successfully.\n", id)
		}
		return nil
	})
	return cmd
}

func (c *cli) purgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every course in the collection",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all courses")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !yes {
			return errors.New("refusing to purge without --yes")
		}
		return c.withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			n, err := app.Service.DeleteAllCourses(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Deleted %d courses\n", n)
			return nil
		})(cmd, args)
	}
	return cmd
}
