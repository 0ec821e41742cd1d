// Package main provides the codeset CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"codeset/internal/editsync"
	"codeset/internal/explain"
	"codeset/internal/hierarchy"
	"codeset/internal/pattern"
	"codeset/internal/registry"
	"codeset/internal/remote"
	"codeset/internal/session"
	"codeset/internal/status"
)

// Version is the current codeset CLI version
var Version = "0.4.2"

var rootCmd = &cobra.Command{
	Use:     "codeset",
	Short:   "Codeset - hierarchical codelist building",
	Long:    `Codeset builds clinical codelists over coding-system hierarchies: explicit include/exclude decisions propagate to descendants, and drafts synchronize with a codeset server.`,
	Version: Version,
}

// Command groups for organized help output
const (
	groupStart  = "start"
	groupEdit   = "edit"
	groupRemote = "remote"
)

var (
	flagRemote      string
	flagOwner       string
	flagDraft       string
	flagHierarchies string
)

// client builds a server client for the selected remote and draft.
func client() (*remote.Client, error) {
	if flagOwner == "" || flagDraft == "" {
		return nil, fmt.Errorf("--owner and --draft required (or configure them on the remote)")
	}
	return remote.NewClientForRemote(flagRemote, flagOwner, flagDraft)
}

// loadHierarchy loads a hierarchy definition from the local hierarchy
// directory by name.
func loadHierarchy(name string) (*hierarchy.Hierarchy, error) {
	dir := flagHierarchies
	if dir == "" {
		dir = os.Getenv("CODESET_HIERARCHIES")
	}
	if dir == "" {
		dir = "./hierarchies"
	}
	return registry.New(dir).Get(name)
}

// loadSession pulls the draft's state from the server and builds a local
// editing session backed by an edit synchronizer over the same client.
func loadSession() (*session.Session, *remote.Client, error) {
	c, err := client()
	if err != nil {
		return nil, nil, err
	}

	state, err := c.GetState()
	if err != nil {
		return nil, nil, fmt.Errorf("fetching draft state: %w", err)
	}

	hier, err := loadHierarchy(state.Hierarchy)
	if err != nil {
		return nil, nil, fmt.Errorf("loading hierarchy %q: %w", state.Hierarchy, err)
	}

	statuses := make(map[string]status.Status, len(state.CodeToStatus))
	for code, symbol := range state.CodeToStatus {
		st, err := status.Parse(symbol)
		if err != nil {
			return nil, nil, fmt.Errorf("code %q: %w", code, err)
		}
		statuses[code] = st
	}

	sess := session.New(hier, status.NewStore(statuses), editsync.New(c))
	return sess, c, nil
}

// drain flushes the session's queued edits and reports anything left
// behind by a transport failure.
func drain(sess *session.Session) error {
	sess.Sync().Wait()
	if pending := sess.Sync().Pending(); len(pending) > 0 {
		return fmt.Errorf("%d edit(s) not acknowledged by the server; re-run to retry", len(pending))
	}
	return nil
}

// --- Commands ---

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new draft on the server",
	Long: `Create a new draft codelist on the server.

The draft is built over a named hierarchy known to the server. Seed codes
are marked explicitly included; everything else starts with the status
inherited from them.

Examples:
  codeset init tennis-elbow --hierarchy snomedct
  codeset init asthma --hierarchy icd10 --code J45 --code J46`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

var (
	initHierarchy string
	initCodes     []string
)

func runInit(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}

	resp, err := c.CreateDraft(args[0], initHierarchy, initCodes)
	if err != nil {
		return err
	}

	fmt.Printf("Created draft %s/%s (id %s)\n", resp.Owner, resp.Slug, shortID(resp.ID))
	return nil
}

var markCmd = &cobra.Command{
	Use:   "mark [codes...]",
	Short: "Mark codes included, excluded, or unresolved",
	Long: `Apply an explicit status decision to one or more codes. The decision
propagates to every descendant that is not itself explicitly marked, and
the edits are pushed to the server.

Status is one of + (include), - (exclude), or ? (clear the decision).

Examples:
  codeset mark 128133004 --status +
  codeset mark 239964003 74323005 --status -
  codeset mark --pattern '1281*' --status +
  codeset mark --term-pattern '*elbow*' --status ?`,
	RunE: runMark,
}

var (
	markStatus      string
	markPattern     string
	markTermPattern string
)

func runMark(cmd *cobra.Command, args []string) error {
	st, err := status.Parse(markStatus)
	if err != nil {
		return fmt.Errorf("invalid --status: %w", err)
	}
	if !st.Assignable() {
		return fmt.Errorf("status %q cannot be assigned directly", markStatus)
	}

	sess, _, err := loadSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	codes := args
	if markPattern != "" {
		matched, err := pattern.Match(sess.Hierarchy(), markPattern)
		if err != nil {
			return err
		}
		codes = append(codes, matched...)
	}
	if markTermPattern != "" {
		matched, err := pattern.MatchTerms(sess.Hierarchy(), markTermPattern)
		if err != nil {
			return err
		}
		codes = append(codes, matched...)
	}
	if len(codes) == 0 {
		return fmt.Errorf("no codes given (pass codes or --pattern/--term-pattern)")
	}

	if _, err := sess.ToggleAll(codes, st); err != nil {
		return err
	}
	if err := drain(sess); err != nil {
		return err
	}

	fmt.Printf("Marked %d code(s) %s\n", len(codes), st)
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the draft's code statuses",
	Long: `Show each code's current status with its term.

Filters select by polarity, counting inherited statuses:
  --filter included     codes that are + or (+)
  --filter excluded     codes that are - or (-)
  --filter unresolved   codes still ?
  --filter in-conflict  codes marked !

With --roots, the listing is reduced to the filtered set's ultimate
ancestors, the roots a tree view would start from.`,
	RunE: runStatus,
}

var (
	statusFilter string
	statusRoots  bool
)

func runStatus(cmd *cobra.Command, args []string) error {
	sess, _, err := loadSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	codes := sess.FilterCodes(session.Filter(statusFilter))
	if statusRoots {
		codes = sess.TreeRoots(codes)
		sort.Strings(codes)
	}

	store := sess.Store()
	hier := sess.Hierarchy()
	for _, code := range codes {
		fmt.Printf("%-4s %-20s %s\n", store.Status(code), code, hier.Term(code))
	}

	if !sess.ExportReady() {
		fmt.Println("\nDraft has unresolved or conflicting codes; it cannot be exported yet.")
	}
	return nil
}

var explainCmd = &cobra.Command{
	Use:   "explain <code>",
	Short: "Explain why a code has its inherited status",
	Long: `Show the explicitly marked ancestors a code inherits its status from.
For a code in conflict, both the including and the excluding ancestors
are shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	sess, _, err := loadSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	code := args[0]
	hier := sess.Hierarchy()
	if !hier.Has(code) {
		return fmt.Errorf("unknown code %q", code)
	}

	st := sess.Store().Status(code)
	fmt.Printf("%s %s (%s)\n", st, code, hier.Term(code))

	if st.IsExplicit() {
		fmt.Println("Explicitly marked.")
		return nil
	}

	fmt.Println(explain.Describe(hier, sess.Explain(code)))
	return nil
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Verify connectivity with the server",
	Long: `Check that the configured remote is reachable and the draft exists.
Edits made with 'mark' are pushed as part of that command; push is a
connectivity check.`,
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}
	if err := c.Health(); err != nil {
		return err
	}
	if _, err := c.GetState(); err != nil {
		return err
	}
	fmt.Println("Server reachable, draft found.")
	return nil
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the draft's current state as a version",
	RunE:  runSave,
}

var saveTag string

func runSave(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}

	resp, err := c.Save(saveTag)
	if err != nil {
		return err
	}

	if resp.Tag != "" {
		fmt.Printf("Saved version %s (tag %s)\n", shortID(resp.Fingerprint), resp.Tag)
	} else {
		fmt.Printf("Saved version %s\n", shortID(resp.Fingerprint))
	}
	return nil
}

var downloadCmd = &cobra.Command{
	Use:   "download <tag-or-fingerprint>",
	Short: "Download a saved version",
	Long: `Download a saved version's code-to-status table as JSON. The server
refuses versions that still contain unresolved or conflicting codes.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var downloadOut string

func runDownload(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}

	v, err := c.Download(args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling version: %w", err)
	}

	out := downloadOut
	if out == "" {
		out = v.Filename + ".json"
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Printf("Wrote %s (%d codes)\n", out, len(v.CodeToStatus))
	return nil
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List your drafts on the server",
	RunE:  runDrafts,
}

func runDrafts(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}

	drafts, err := c.ListDrafts()
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		fmt.Println("No drafts.")
		return nil
	}

	for _, d := range drafts {
		fmt.Printf("%s/%-24s %s\n", d.Owner, d.Slug, d.Name)
	}
	return nil
}

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy",
	Short: "Hierarchy commands",
}

var hierarchyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hierarchy definitions in the local hierarchy directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := flagHierarchies
		if dir == "" {
			dir = os.Getenv("CODESET_HIERARCHIES")
		}
		if dir == "" {
			dir = "./hierarchies"
		}
		names, err := registry.New(dir).List()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var hierarchyShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a hierarchy's codes and structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hier, err := loadHierarchy(args[0])
		if err != nil {
			return err
		}
		for _, code := range hier.Codes() {
			parents := hier.Parents(code)
			if len(parents) == 0 {
				fmt.Printf("%-20s %s\n", code, hier.Term(code))
			} else {
				fmt.Printf("%-20s %s  (child of %s)\n", code, hier.Term(code), strings.Join(parents, ", "))
			}
		}
		return nil
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage server remotes",
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remote.SetRemote(args[0], &remote.RemoteEntry{
			URL:   args[1],
			Owner: flagOwner,
			Draft: flagDraft,
		})
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remote.DeleteRemote(args[0])
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured remotes",
	RunE: func(cmd *cobra.Command, args []string) error {
		remotes, err := remote.ListRemotes()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(remotes))
		for name := range remotes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entry := remotes[name]
			fmt.Printf("%-12s %s", name, entry.URL)
			if entry.Owner != "" {
				fmt.Printf("  (%s/%s)", entry.Owner, entry.Draft)
			}
			fmt.Println()
		}
		return nil
	},
}

// shortID safely truncates an ID string to 12 characters.
func shortID(s string) string {
	if len(s) >= 12 {
		return s[:12]
	}
	return s
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRemote, "remote", "origin", "Named remote to use")
	rootCmd.PersistentFlags().StringVar(&flagOwner, "owner", os.Getenv("CODESET_OWNER"), "Draft owner")
	rootCmd.PersistentFlags().StringVar(&flagDraft, "draft", os.Getenv("CODESET_DRAFT"), "Draft slug")
	rootCmd.PersistentFlags().StringVar(&flagHierarchies, "hierarchies", "", "Local hierarchy directory (default: $CODESET_HIERARCHIES or ./hierarchies)")

	initCmd.Flags().StringVar(&initHierarchy, "hierarchy", "", "Hierarchy name the draft is built over")
	initCmd.Flags().StringArrayVar(&initCodes, "code", nil, "Seed code to include (repeatable)")
	initCmd.MarkFlagRequired("hierarchy")

	markCmd.Flags().StringVar(&markStatus, "status", "+", "Status to apply: +, - or ?")
	markCmd.Flags().StringVar(&markPattern, "pattern", "", "Glob pattern matched against codes")
	markCmd.Flags().StringVar(&markTermPattern, "term-pattern", "", "Glob pattern matched against terms")

	statusCmd.Flags().StringVar(&statusFilter, "filter", "", "Filter: included, excluded, unresolved, in-conflict")
	statusCmd.Flags().BoolVar(&statusRoots, "roots", false, "Reduce the listing to ultimate ancestors")

	saveCmd.Flags().StringVar(&saveTag, "tag", "", "Optional tag for the saved version")
	downloadCmd.Flags().StringVar(&downloadOut, "out", "", "Output file (default: <owner>-<draft>-<tag>.json)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupStart, Title: "Getting Started:"},
		&cobra.Group{ID: groupEdit, Title: "Editing:"},
		&cobra.Group{ID: groupRemote, Title: "Remote & Versions:"},
	)

	initCmd.GroupID = groupStart
	hierarchyCmd.GroupID = groupStart
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(hierarchyCmd)

	markCmd.GroupID = groupEdit
	statusCmd.GroupID = groupEdit
	explainCmd.GroupID = groupEdit
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(explainCmd)

	pushCmd.GroupID = groupRemote
	saveCmd.GroupID = groupRemote
	downloadCmd.GroupID = groupRemote
	draftsCmd.GroupID = groupRemote
	remoteCmd.GroupID = groupRemote
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(draftsCmd)
	rootCmd.AddCommand(remoteCmd)

	hierarchyCmd.AddCommand(hierarchyListCmd)
	hierarchyCmd.AddCommand(hierarchyShowCmd)

	remoteCmd.AddCommand(remoteAddCmd)
	remoteCmd.AddCommand(remoteRemoveCmd)
	remoteCmd.AddCommand(remoteListCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
