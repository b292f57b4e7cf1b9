package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	shlex "github.com/flynn/go-shlex"
	"gopkg.in/yaml.v3"

	"github.com/ghyeongl/pendingfs/logging"
	"github.com/ghyeongl/pendingfs/pending"
	"github.com/ghyeongl/pendingfs/storage"
)

var (
	errExit      = errors.New("exit")
	errUsage     = errors.New("wrong number of arguments")
	errNoEntry   = errors.New("no such entry")
	errNotDir    = errors.New("not a directory")
	errUnmapped  = errors.New("entry has no URI under this provider")
	errNotStaged = errors.New("no staged operation with that id")
)

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// shell is a line-oriented front end over one store and one provider.
type shell struct {
	store       *pending.Store
	provider    storage.Provider
	out         io.Writer
	cwd         string
	commands    map[string]command
	unsubscribe func()
	log         *slog.Logger
}

func newShell(store *pending.Store, provider storage.Provider, out io.Writer) *shell {
	sh := &shell{
		store:    store,
		provider: provider,
		out:      out,
		log:      logging.Sub("shell"),
	}
	sh.unsubscribe = store.Subscribe(func() {
		if logging.Enabled(slog.LevelDebug) {
			sh.log.Debug("staging changed", "pending", store.Len())
		}
	})
	sh.commands = map[string]command{
		"ls":      {"ls [dir]", "list a directory merged with staged changes", sh.cmdList},
		"cd":      {"cd <dir>", "change directory (.. and / work)", sh.cmdCd},
		"pwd":     {"pwd", "print the current directory", sh.cmdPwd},
		"rm":      {"rm <name>...", "toggle staged deletion", sh.cmdRemove},
		"rename":  {"rename <name> <new>", "stage a rename", sh.cmdRename},
		"mkdir":   {"mkdir <name>", "stage a new directory", sh.cmdCreate(storage.Directory)},
		"touch":   {"touch <name>", "stage a new empty file", sh.cmdCreate(storage.File)},
		"cut":     {"cut <name>...", "put entries on the clipboard for moving", sh.cmdClipboard(true)},
		"copy":    {"copy <name>...", "put entries on the clipboard for copying", sh.cmdClipboard(false)},
		"paste":   {"paste", "stage the clipboard into the current directory", sh.cmdPaste},
		"undo":    {"undo", "undo the last staging change", sh.cmdUndo},
		"redo":    {"redo", "redo the last undone change", sh.cmdRedo},
		"pending": {"pending [--yaml]", "show staged operations", sh.cmdPending},
		"drop":    {"drop <id>", "remove one staged operation", sh.cmdDrop},
		"discard": {"discard", "drop every staged operation and the clipboard", sh.cmdDiscard},
		"commit":  {"commit", "execute staged operations against the provider", sh.cmdCommit},
		"help":    {"help", "show this help", sh.cmdHelp},
		"exit":    {"exit", "leave the shell", func(context.Context, []string) error { return errExit }},
	}
	sh.commands["quit"] = sh.commands["exit"]
	return sh
}

// Close detaches the shell from the store.
func (sh *shell) Close() {
	sh.unsubscribe()
}

func (sh *shell) prompt() string {
	snap := sh.store.Snapshot()
	mark := ""
	if n := len(snap.Operations); n > 0 {
		mark = fmt.Sprintf(" [%d]", n)
	}
	return fmt.Sprintf("pendingfs:/%s%s> ", sh.cwd, mark)
}

// Run reads commands from in until EOF, exit, or ctx is cancelled.
func (sh *shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(sh.out, sh.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}
		if err := sh.Exec(ctx, scanner.Text()); errors.Is(err, errExit) {
			return nil
		}
	}
}

// Exec runs one command line. Errors are printed; errExit is returned to
// end the loop.
func (sh *shell) Exec(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return err
	}
	if len(args) == 0 {
		return nil
	}
	c, ok := sh.commands[args[0]]
	if !ok {
		fmt.Fprintf(sh.out, "unknown command: %s (try help)\n", args[0])
		return nil
	}
	err = c.run(ctx, args[1:])
	switch {
	case err == nil, errors.Is(err, errExit):
	case errors.Is(err, errUsage):
		fmt.Fprintf(sh.out, "usage: %s\n", c.usage)
	default:
		fmt.Fprintf(sh.out, "error: %v\n", err)
	}
	return err
}

// resolve turns a shell argument into a provider path.
func (sh *shell) resolve(arg string) string {
	switch {
	case arg == "" || arg == ".":
		return sh.cwd
	case strings.HasPrefix(arg, "/"):
		return storage.CleanPath(arg)
	default:
		return storage.CleanPath(storage.JoinPath(sh.cwd, arg))
	}
}

// visible lists dir merged with the staged state. A directory that only
// exists as a staged create lists as its virtual children.
func (sh *shell) visible(ctx context.Context, dir string) ([]storage.Entry, error) {
	scheme, container := sh.provider.Scheme(), sh.provider.Container()
	entries, err := sh.provider.List(ctx, dir)
	if err != nil {
		if storage.StatusOf(err) != storage.StatusNotFound || !sh.stagedDir(dir) {
			return nil, err
		}
		entries = nil
	}
	return sh.store.VisibleEntries(entries, dir, scheme, container), nil
}

func (sh *shell) stagedDir(dir string) bool {
	u, ok := pending.PathToURI(dir, true, sh.provider.Scheme(), sh.provider.Container())
	if !ok {
		return false
	}
	st := sh.store.EntryState(u)
	return st.Created || st.MovedHere || st.CopiedHere
}

func (sh *shell) lookup(ctx context.Context, name string) (storage.Entry, pending.URI, error) {
	entries, err := sh.visible(ctx, sh.cwd)
	if err != nil {
		return storage.Entry{}, "", err
	}
	i := slices.IndexFunc(entries, func(e storage.Entry) bool { return e.Name == name })
	if i < 0 {
		// Staged-deleted rows are hidden; rm must still find them to unmark.
		return sh.lookupHidden(ctx, name)
	}
	e := entries[i]
	u, ok := pending.EntryToURI(e, sh.provider.Scheme(), sh.provider.Container())
	if !ok {
		return storage.Entry{}, "", fmt.Errorf("%s: %w", name, errUnmapped)
	}
	return e, u, nil
}

func (sh *shell) lookupHidden(ctx context.Context, name string) (storage.Entry, pending.URI, error) {
	entries, err := sh.provider.List(ctx, sh.cwd)
	if err != nil {
		return storage.Entry{}, "", fmt.Errorf("%s: %w", name, errNoEntry)
	}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		u, ok := pending.EntryToURI(e, sh.provider.Scheme(), sh.provider.Container())
		if ok && sh.store.IsMarkedForDeletion(u) {
			return e, u, nil
		}
	}
	return storage.Entry{}, "", fmt.Errorf("%s: %w", name, errNoEntry)
}

func (sh *shell) cmdList(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	dir := sh.cwd
	if len(args) == 1 {
		dir = sh.resolve(args[0])
	}
	entries, err := sh.visible(ctx, dir)
	if err != nil {
		return err
	}
	scheme, container := sh.provider.Scheme(), sh.provider.Container()
	for _, e := range entries {
		var st pending.EntryState
		if u, ok := pending.EntryToURI(e, scheme, container); ok {
			st = sh.store.EntryState(u)
		}
		name := e.Name
		if e.Type.IsContainer() {
			name += "/"
		}
		if st.Renamed {
			name += " -> " + st.RenamedTo
		}
		fmt.Fprintf(sh.out, "%s %-6s %s\n", marks(st), e.Type, name)
	}
	return nil
}

// marks renders an EntryState as a fixed-width flag column.
func marks(st pending.EntryState) string {
	flag := func(set bool, c byte) byte {
		if set {
			return c
		}
		return '.'
	}
	return string([]byte{
		flag(st.Created, '+'),
		flag(st.MovedHere, '>'),
		flag(st.CopiedHere, '='),
		flag(st.Renamed, 'r'),
		flag(st.Deleted, 'x'),
	})
}

func (sh *shell) cmdCd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	var dir string
	switch args[0] {
	case "/":
		dir = ""
	case "..":
		dir = storage.ParentPath(sh.cwd)
	default:
		dir = sh.resolve(args[0])
	}
	if dir != "" {
		parent, name := storage.ParentPath(dir), storage.BaseName(dir)
		entries, err := sh.visible(ctx, parent)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(entries, func(e storage.Entry) bool { return e.Name == name })
		if i < 0 {
			return fmt.Errorf("%s: %w", args[0], errNoEntry)
		}
		if !entries[i].Type.IsContainer() {
			return fmt.Errorf("%s: %w", args[0], errNotDir)
		}
	}
	sh.cwd = dir
	return nil
}

func (sh *shell) cmdPwd(context.Context, []string) error {
	fmt.Fprintf(sh.out, "/%s\n", sh.cwd)
	return nil
}

func (sh *shell) cmdRemove(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, name := range args {
		e, u, err := sh.lookup(ctx, name)
		if err != nil {
			return err
		}
		if sh.store.ToggleDeletion(u, e) {
			fmt.Fprintf(sh.out, "marked %s for deletion\n", name)
		} else {
			fmt.Fprintf(sh.out, "unmarked %s\n", name)
		}
	}
	return nil
}

func (sh *shell) cmdRename(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	e, u, err := sh.lookup(ctx, args[0])
	if err != nil {
		return err
	}
	if !sh.store.Rename(u, e, args[1]) {
		fmt.Fprintln(sh.out, "nothing changed")
	}
	return nil
}

func (sh *shell) cmdCreate(t storage.EntryType) func(context.Context, []string) error {
	return func(_ context.Context, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		dir, ok := pending.PathToURI(sh.cwd, true, sh.provider.Scheme(), sh.provider.Container())
		if !ok {
			return errUnmapped
		}
		u, ok := sh.store.Create(dir, args[0], t)
		if !ok {
			fmt.Fprintln(sh.out, "nothing changed")
			return nil
		}
		fmt.Fprintf(sh.out, "staged %s %s\n", t, u)
		return nil
	}
}

func (sh *shell) cmdClipboard(cut bool) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return errUsage
		}
		entries := make([]storage.Entry, 0, len(args))
		uris := make([]pending.URI, 0, len(args))
		for _, name := range args {
			e, u, err := sh.lookup(ctx, name)
			if err != nil {
				return err
			}
			entries = append(entries, e)
			uris = append(uris, u)
		}
		if cut {
			sh.store.Cut(entries, uris)
		} else {
			sh.store.Copy(entries, uris)
		}
		fmt.Fprintf(sh.out, "%d on clipboard\n", len(entries))
		return nil
	}
}

func (sh *shell) cmdPaste(_ context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if !sh.store.HasClipboardContent() {
		fmt.Fprintln(sh.out, "clipboard is empty")
		return nil
	}
	res := sh.store.Paste(sh.cwd, sh.provider.Scheme(), sh.provider.Container())
	if res.Refused {
		return errUnmapped
	}
	fmt.Fprintf(sh.out, "staged %d\n", len(res.Staged))
	for _, u := range res.SelfTargets {
		fmt.Fprintf(sh.out, "skipped %s: already here\n", u)
	}
	for _, u := range res.Duplicates {
		fmt.Fprintf(sh.out, "skipped %s: already staged\n", u)
	}
	return nil
}

func (sh *shell) cmdUndo(context.Context, []string) error {
	if !sh.store.Undo() {
		fmt.Fprintln(sh.out, "nothing to undo")
	}
	return nil
}

func (sh *shell) cmdRedo(context.Context, []string) error {
	if !sh.store.Redo() {
		fmt.Fprintln(sh.out, "nothing to redo")
	}
	return nil
}

type pendingView struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
	Op   string `yaml:"op"`
}

func (sh *shell) cmdPending(_ context.Context, args []string) error {
	asYAML := false
	switch {
	case len(args) == 1 && args[0] == "--yaml":
		asYAML = true
	case len(args) != 0:
		return errUsage
	}

	snap := sh.store.Snapshot()
	if asYAML {
		views := make([]pendingView, 0, len(snap.Operations))
		for _, op := range snap.Operations {
			views = append(views, pendingView{ID: op.OpID(), Kind: op.Kind().String(), Op: op.String()})
		}
		enc := yaml.NewEncoder(sh.out)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return fmt.Errorf("encode pending: %w", err)
		}
		return enc.Close()
	}

	if len(snap.Operations) == 0 {
		fmt.Fprintln(sh.out, "nothing staged")
	}
	for _, op := range snap.Operations {
		fmt.Fprintf(sh.out, "%s  %s\n", op.OpID(), op)
	}
	if cb := snap.Clipboard; cb != nil {
		fmt.Fprintf(sh.out, "clipboard: %s %d\n", cb.Mode, len(cb.URIs))
	}
	return nil
}

func (sh *shell) cmdDrop(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if !sh.store.RemoveOperation(args[0]) {
		return fmt.Errorf("%s: %w", args[0], errNotStaged)
	}
	return nil
}

func (sh *shell) cmdDiscard(context.Context, []string) error {
	sh.store.Discard()
	return nil
}

func (sh *shell) cmdCommit(ctx context.Context, _ []string) error {
	if sh.store.Len() == 0 {
		fmt.Fprintln(sh.out, "nothing staged")
		return nil
	}
	report, err := sh.store.Execute(ctx, sh.provider)
	if err != nil {
		return err
	}
	for _, f := range report.Failed {
		fmt.Fprintf(sh.out, "failed %s: %s\n", f.Op, f.Status)
	}
	fmt.Fprintln(sh.out, report.Summary())
	return nil
}

func (sh *shell) cmdHelp(context.Context, []string) error {
	names := make([]string, 0, len(sh.commands))
	for name := range sh.commands {
		if name != "quit" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		c := sh.commands[name]
		fmt.Fprintf(sh.out, "  %-22s %s\n", c.usage, c.help)
	}
	return nil
}
