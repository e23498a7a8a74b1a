package kv

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/db"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := targetMap(cmd)
			if err != nil {
				return err
			}
			if err := m.Insert(cmd.Context(), []byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := targetMap(cmd)
			if err != nil {
				return err
			}
			value, ok, err := m.Get(cmd.Context(), []byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", args[0], ok, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := targetMap(cmd)
			if err != nil {
				return err
			}
			if err := m.Remove(cmd.Context(), []byte(args[0])); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := targetMap(cmd)
			if err != nil {
				return err
			}
			found, err := m.Contains(cmd.Context(), []byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count",
		Short: "Counts the live keys of a keyspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := targetMap(cmd)
			if err != nil {
				return err
			}
			n, err := m.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("map=%s, count=%d\n", m.Name(), n)
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Streams the entries of a keyspace in key order",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	watchCmd = &cobra.Command{
		Use:   "watch [key]",
		Short: "Blocks until the key is next written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := targetMap(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			fmt.Printf("watching key=%s (ctrl-c to abort)\n", args[0])
			if err := m.WaitFor(ctx, []byte(args[0])); err != nil {
				return err
			}
			fmt.Println("key written")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints store and keyspace information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("read-only=%v, read-replica=%v\n", database.IsReadOnly(), database.IsReadReplica())
			for _, name := range database.Names() {
				m, err := database.Get(name)
				if err != nil {
					return err
				}
				size, err := m.PropertyInteger("disk-usage")
				if err != nil {
					return err
				}
				n, err := m.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("map=%s, keys=%d, disk-usage=%d bytes\n", name, n, size)
			}
			return nil
		},
	}
)

func init() {
	// every subcommand operates on one keyspace
	for _, cmd := range []*cobra.Command{setCmd, getCmd, delCmd, hasCmd, countCmd, listCmd, watchCmd, perfTestCmd} {
		cmd.Flags().String("map", "", util.WrapString("Keyspace to operate on (default: the first configured keyspace)"))
	}

	listCmd.Flags().String("prefix", "", util.WrapString("Only list keys carrying this prefix"))
	listCmd.Flags().String("from", "", util.WrapString("Start listing at this key (first key >= from, or <= from with --reverse)"))
	listCmd.Flags().Bool("reverse", false, util.WrapString("List in descending key order"))
	listCmd.Flags().Bool("keys-only", false, util.WrapString("Print keys without values"))
	listCmd.Flags().Int("limit", 0, util.WrapString("Stop after this many entries (0 = unlimited)"))
}

func runList(cmd *cobra.Command, _ []string) error {
	m, err := targetMap(cmd)
	if err != nil {
		return err
	}

	prefix, _ := cmd.Flags().GetString("prefix")
	from, _ := cmd.Flags().GetString("from")
	rev, _ := cmd.Flags().GetBool("reverse")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")
	limit, _ := cmd.Flags().GetInt("limit")

	if prefix != "" && from != "" {
		return fmt.Errorf("--prefix and --from are mutually exclusive")
	}

	ctx := cmd.Context()
	n := 0

	if keysOnly {
		stream := keyStreamFor(m, rev, prefix, from)
		defer stream.Close()
		for stream.Next(ctx) {
			fmt.Printf("%s\n", stream.Key())
			n++
			if limit > 0 && n >= limit {
				break
			}
		}
		return stream.Err()
	}

	stream := entryStreamFor(m, rev, prefix, from)
	defer stream.Close()
	for stream.Next(ctx) {
		fmt.Printf("%s=%s\n", stream.Key(), stream.Value())
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	return stream.Err()
}

// keyStreamFor selects the key-only stream adapter matching the flags.
func keyStreamFor(m *db.Map, rev bool, prefix, from string) *db.KeyStream {
	switch {
	case prefix != "" && rev:
		return m.ReverseKeysPrefix([]byte(prefix))
	case prefix != "":
		return m.KeysPrefix([]byte(prefix))
	case from != "" && rev:
		return m.ReverseKeysFrom([]byte(from))
	case from != "":
		return m.KeysFrom([]byte(from))
	case rev:
		return m.ReverseKeys()
	default:
		return m.Keys()
	}
}

// entryStreamFor selects the entry stream adapter matching the flags.
func entryStreamFor(m *db.Map, rev bool, prefix, from string) *db.Stream {
	switch {
	case prefix != "" && rev:
		return m.ReverseEntriesPrefix([]byte(prefix))
	case prefix != "":
		return m.EntriesPrefix([]byte(prefix))
	case from != "" && rev:
		return m.ReverseEntriesFrom([]byte(from))
	case from != "":
		return m.EntriesFrom([]byte(from))
	case rev:
		return m.ReverseEntries()
	default:
		return m.Entries()
	}
}
