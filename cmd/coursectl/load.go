package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/LuisaMG01/course-vectorization/engine/domain"
	"github.com/LuisaMG01/course-vectorization/pkg/bootstrap"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) loadCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "load <pattern>...",
		Short: "Load courses from JSON or YAML files",
		Long: `Load courses from files matching the given glob patterns. "**" matches
across directories. Each file holds either a list of courses or an
object with a "courses" list, as accepted by POST /load-courses.`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "courses per batch")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		files, err := expandPatterns(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files match %s", strings.Join(args, " "))
		}

		var courses []domain.CourseInput
		for _, f := range files {
			batch, err := readCourses(f)
			if err != nil {
				return err
			}
			courses = append(courses, batch...)
		}

		out := cmd.OutOrStdout()
		bar := progressbar.NewOptions(len(courses),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Loading"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
		)

		var loaded, failed, offset int
		if batchSize <= 0 {
			batchSize = len(courses)
		}
		for chunk := range slices.Chunk(courses, max(batchSize, 1)) {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			res := app.Service.LoadCourses(cmd.Context(), chunk)
			loaded += len(res.Processed)
			failed += res.Failed()
			for _, e := range res.Errors {
				bar.Clear()
				printf(cmd.ErrOrStderr(), "  - %s: %s\n", describe(offset+e.Index, e.ID), e.Reason)
			}
			bar.Add(len(chunk))
			offset += len(chunk)
		}
		bar.Finish()

		printf(out, "Loaded %d of %d courses from %d files\n", loaded, len(courses), len(files))
		if failed > 0 {
			return fmt.Errorf("%d courses failed", failed)
		}
		return nil
	})
	return cmd
}

func describe(index int, id string) string {
	if id == "" {
		return fmt.Sprintf("course #%d", index)
	}
	return fmt.Sprintf("course #%d (%s)", index, id)
}

// expandPatterns resolves glob patterns to a sorted, de-duplicated file
// list. A pattern without glob characters must name an existing file.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[{") {
			if _, err := os.Stat(p); err != nil {
				return nil, fmt.Errorf("read %s: %w", p, err)
			}
			files = append(files, p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// courseFile is the object form of a course file.
type courseFile struct {
	Courses []domain.CourseInput `json:"courses" yaml:"courses"`
}

// readCourses parses one file by extension.
func readCourses(path string) ([]domain.CourseInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var unmarshal func([]byte, any) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("%s: unsupported file type", path)
	}

	var list []domain.CourseInput
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var obj courseFile
	if err := unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return obj.Courses, nil
}
