package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"twaler/pkg/storage"
	"twaler/pkg/ui"
)

var (
	listName   string
	namePrefix string
)

// cacheCmd groups the read side of a cache instance, used by ETL jobs
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect a cache instance",
}

var cacheLsCmd = &cobra.Command{
	Use:   "ls <instance>",
	Short: "List every target id cached in an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openInstance(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for id, dir := range cache.WalkTargetIDs() {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\n", id, dir)
		}
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <instance> <id>",
	Short: "List the records of one target, in the order they were stored",
	Example: `  twaler cache show cache/2024.01.02.03.04.05 42 --prefix friends.json.data
  twaler cache show cache/2024.01.02.03.04.05 42 --list staff`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openInstance(args[0])
		if err != nil {
			return err
		}
		names, err := cache.ListFilesWithPrefix(args[1], listName, namePrefix)
		if err != nil {
			return err
		}
		dir, err := cache.Dir(args[1], listName)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintln(out, filepath.Join(dir, name))
		}
		if len(names) == 0 {
			ui.PrintDim("no records")
		}
		return nil
	},
}

var cacheCatCmd = &cobra.Command{
	Use:   "cat <record>...",
	Short: "Print the decompressed contents of cache records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, path := range args {
			data, err := storage.ReadRecord(path)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheLsCmd, cacheShowCmd, cacheCatCmd)

	cacheShowCmd.Flags().StringVarP(&listName, "list", "l", "", "show records of this list instead of the user")
	cacheShowCmd.Flags().StringVarP(&namePrefix, "prefix", "p", "", "only records whose name starts with this, e.g. friends.json.data")
}

func openInstance(dir string) (*storage.Cache, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return storage.NewCache(dir)
}
