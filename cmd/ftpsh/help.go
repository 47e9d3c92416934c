package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

var helpText = map[string]string{
	"ascii":   "set ascii transfer type",
	"binary":  "set binary transfer type",
	"cd":      "change remote working directory",
	"cdup":    "change remote working directory to parent directory",
	"debug":   "toggle debugging mode",
	"dir":     "list contents of remote directory",
	"get":     "receive file",
	"help":    "print local help information",
	"passive": "enter passive transfer mode",
	"put":     "send one file",
	"pwd":     "print working directory on remote machine",
	"quit":    "terminate ftp session and exit",
	"user":    "send new user information",
}

// printHelp lists every command, or describes the named ones.
func printHelp(w io.Writer, names []string) {
	if len(names) == 0 {
		all := make([]string, 0, len(helpText))
		for name := range helpText {
			all = append(all, name)
		}
		sort.Strings(all)

		fmt.Fprintln(w, "Commands are:")
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		for i := 0; i < len(all); i += 4 {
			end := i + 4
			if end > len(all) {
				end = len(all)
			}
			fmt.Fprintln(tw, strings.Join(all[i:end], "\t"))
		}
		tw.Flush()
		return
	}

	for _, name := range names {
		text, ok := helpText[strings.ToLower(name)]
		if !ok {
			fmt.Fprintf(w, "?Invalid help command %s\n", name)
			continue
		}
		fmt.Fprintf(w, "%-16s%s\n", name, text)
	}
}
