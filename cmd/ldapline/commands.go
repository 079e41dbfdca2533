package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ldapline/ldapline"
)

var (
	flagBase  string
	flagScope string
	flagAttrs []string
)

func init() {
	searchCmd.Flags().StringVarP(&flagBase, "base", "b", "", "search base DN")
	searchCmd.Flags().StringVarP(&flagScope, "scope", "s", "", "search scope: base, one or sub")
	searchCmd.Flags().StringSliceVarP(&flagAttrs, "attr", "a", nil, "attributes to return")
}

var searchCmd = &cobra.Command{
	Use:   "search [filter]",
	Short: "Search the directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connect()
		if err != nil {
			return err
		}
		defer conn.Close()

		req := &ldapline.SearchRequest{
			Base:       flagBase,
			Attributes: flagAttrs,
		}
		if len(args) == 1 {
			req.Filter = args[0]
		}
		if flagScope != "" {
			scope, ok := ldapline.ParseScope(flagScope)
			if !ok {
				return fmt.Errorf("invalid scope %q", flagScope)
			}
			req.Scope = scope
		}

		entries, err := conn.SearchAll(req)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			printEntry(entry)
		}
		fmt.Printf("# %d entries\n", len(entries))
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <dn> <attr=value>...",
	Short: "Add an entry",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs, err := parseAttributes(args[1:])
		if err != nil {
			return err
		}
		conn, err := connect()
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := conn.Add(args[0], attrs); err != nil {
			return err
		}
		fmt.Printf("added %s\n", args[0])
		return nil
	},
}

var modifyCmd = &cobra.Command{
	Use:   "modify <dn> <op:attr=value>...",
	Short: "Modify an entry with add:, delete: or replace: changes",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes, err := parseChanges(args[1:])
		if err != nil {
			return err
		}
		conn, err := connect()
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := conn.Modify(args[0], changes); err != nil {
			return err
		}
		fmt.Printf("modified %s\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <dn>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connect()
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := conn.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the authorization identity of the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connect()
		if err != nil {
			return err
		}
		defer conn.Close()
		identity, err := conn.WhoAmI()
		if err != nil {
			return err
		}
		fmt.Println(identity)
		return nil
	},
}

func printEntry(entry *ldapline.Entry) {
	fmt.Printf("dn: %s\n", entry.DN)
	for name, values := range entry.Attributes {
		for _, v := range values {
			fmt.Printf("%s: %s\n", name, v)
		}
	}
	fmt.Println()
}

// parseAttributes groups repeated attr=value arguments into attributes.
func parseAttributes(args []string) ([]ldapline.Attribute, error) {
	byName := make(map[string]int)
	var out []ldapline.Attribute
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed attribute %q, want attr=value", arg)
		}
		if i, seen := byName[name]; seen {
			out[i].Values = append(out[i].Values, value)
			continue
		}
		byName[name] = len(out)
		out = append(out, ldapline.Attribute{Name: name, Values: []string{value}})
	}
	return out, nil
}

func parseChanges(args []string) ([]ldapline.Change, error) {
	var out []ldapline.Change
	for _, arg := range args {
		op, rest, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("malformed change %q, want op:attr=value", arg)
		}
		name, value, hasValue := strings.Cut(rest, "=")
		if name == "" {
			return nil, fmt.Errorf("malformed change %q, missing attribute", arg)
		}
		var values []string
		if hasValue {
			values = []string{value}
		}
		switch op {
		case "add":
			out = append(out, ldapline.AddChange(name, values...))
		case "delete":
			out = append(out, ldapline.DeleteChange(name, values...))
		case "replace":
			out = append(out, ldapline.ReplaceChange(name, values...))
		default:
			return nil, fmt.Errorf("unknown change operation %q, want add, delete or replace", op)
		}
	}
	return out, nil
}
