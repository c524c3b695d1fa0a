package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"mvdan.cc/sh/v3/syntax"
)

// shellWord is one argument of a parsed command. Resolved is false when the
// word depends on expansions (variables, command substitution) that cannot
// be evaluated without running the shell.
type shellWord struct {
	Text     string
	Resolved bool
}

// workDirWord stands for the directory the step starts in.
var workDirWord = shellWord{Resolved: true}

// stdinOperand is appended to commands run by xargs, whose real operands
// only exist at run time.
var stdinOperand = shellWord{Text: "<operands from stdin>"}

type simpleCommand struct {
	Name string
	Args []shellWord
	// Dir is where relative operands resolve: empty Text means the work
	// directory, Resolved false means an earlier cd went somewhere unknown.
	Dir shellWord
}

type redirectTarget struct {
	Word shellWord
	Dir  shellWord
}

// commandFacts is what the examiner needs to know about a command line.
type commandFacts struct {
	Commands []simpleCommand
	Writes   []redirectTarget
	// Scripts is the command line plus every nested script and unwrapped
	// command, so pattern rules also see what wrappers run.
	Scripts []string
	// Opaque lists commands whose effect cannot be known before running.
	Opaque []string
}

const maxNesting = 4

var shellNames = map[string]bool{"sh": true, "bash": true, "dash": true, "zsh": true, "ksh": true, "ash": true}

// inspect parses a command line with a bash-compatible parser and collects
// every simple command and output redirection, following cd, nested shell
// scripts and wrapper commands.
func inspect(command string) (commandFacts, error) {
	in := &inspector{dir: workDirWord}
	if err := in.script(command); err != nil {
		return commandFacts{}, err
	}
	return in.facts, nil
}

type inspector struct {
	facts commandFacts
	dir   shellWord
	depth int
}

func (in *inspector) script(src string) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	if err != nil {
		return err
	}
	in.facts.Scripts = append(in.facts.Scripts, src)
	syntax.Walk(file, in.visit)
	return nil
}

func (in *inspector) visit(node syntax.Node) bool {
	switch n := node.(type) {
	case *syntax.Subshell:
		in.isolated(n.Stmts)
		return false
	case *syntax.CmdSubst:
		in.isolated(n.Stmts)
		return false
	case *syntax.CallExpr:
		if len(n.Args) == 0 {
			return true
		}
		words := make([]shellWord, len(n.Args))
		for i, arg := range n.Args {
			text, ok := wordLiteral(arg)
			words[i] = shellWord{Text: text, Resolved: ok}
		}
		in.call(words)
	case *syntax.Redirect:
		switch n.Op {
		case syntax.RdrOut, syntax.AppOut, syntax.ClbOut, syntax.RdrAll, syntax.AppAll, syntax.RdrInOut:
			if n.Word != nil {
				text, ok := wordLiteral(n.Word)
				in.facts.Writes = append(in.facts.Writes, redirectTarget{Word: shellWord{Text: text, Resolved: ok}, Dir: in.dir})
			}
		}
	}
	return true
}

// isolated walks statements that run in a subshell; a cd inside them does
// not move the parent.
func (in *inspector) isolated(stmts []*syntax.Stmt) {
	saved := in.dir
	for _, stmt := range stmts {
		syntax.Walk(stmt, in.visit)
	}
	in.dir = saved
}

func (in *inspector) opaque(what string) {
	in.facts.Opaque = append(in.facts.Opaque, what)
}

func (in *inspector) call(words []shellWord) {
	if !words[0].Resolved {
		in.opaque("command name " + words[0].Text)
		return
	}
	name := filepath.Base(words[0].Text)
	args := words[1:]

	switch {
	case name == "cd" || name == "pushd":
		in.chdir(args)
		return
	case name == "popd":
		in.dir = shellWord{Text: "popd"}
		return
	case name == "eval":
		in.nested("eval", false, args)
		return
	case shellNames[name]:
		if script, ok := shellScript(args); ok {
			in.nested(name+" -c", true, []shellWord{script})
			return
		}
	}

	if inner, ok := in.unwrap(name, args); ok {
		if len(inner) > 0 {
			in.facts.Scripts = append(in.facts.Scripts, joinWords(inner))
			in.call(inner)
		}
		return
	}
	in.facts.Commands = append(in.facts.Commands, simpleCommand{Name: name, Args: args, Dir: in.dir})
}

// nested parses a script handed to another shell (sh -c) or to eval. Only
// eval shares the current directory with what follows.
func (in *inspector) nested(label string, subshell bool, words []shellWord) {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if !w.Resolved {
			in.opaque(label + " " + w.Text)
			return
		}
		parts = append(parts, w.Text)
	}
	if in.depth >= maxNesting {
		in.opaque(label + " nested too deeply")
		return
	}
	saved := in.dir
	in.depth++
	err := in.script(strings.Join(parts, " "))
	in.depth--
	if subshell {
		in.dir = saved
	}
	if err != nil {
		in.opaque(fmt.Sprintf("%s script: %v", label, err))
	}
}

// shellScript returns the script argument of sh -c style invocations.
func shellScript(args []shellWord) (shellWord, bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !arg.Resolved || strings.HasPrefix(arg.Text, "--") {
			return shellWord{}, false
		}
		switch {
		case arg.Text == "-o" || arg.Text == "+o" || arg.Text == "-O" || arg.Text == "+O":
			i++
		case !strings.HasPrefix(arg.Text, "-") && !strings.HasPrefix(arg.Text, "+"):
			return shellWord{}, false
		case strings.Contains(arg.Text, "c") && i+1 < len(args):
			return args[i+1], true
		}
	}
	return shellWord{}, false
}

func (in *inspector) chdir(args []shellWord) {
	operands := nonFlagArgs(args)
	if len(operands) == 0 {
		in.dir = shellWord{Text: "~", Resolved: true}
		return
	}
	target := operands[0]
	switch {
	case !target.Resolved || target.Text == "-":
		in.dir = shellWord{Text: target.Text}
	case isAnchored(target.Text):
		in.dir = target
	case !in.dir.Resolved:
	case in.dir.Text == "":
		in.dir = target
	default:
		in.dir = shellWord{Text: filepath.Join(in.dir.Text, target.Text), Resolved: true}
	}
}

// wrapperValueFlags lists, per wrapper, the flags that consume the next word.
var wrapperValueFlags = map[string]map[string]bool{
	"nohup":   {},
	"setsid":  {},
	"builtin": {},
	"command": {},
	"exec":    {"-a": true},
	"nice":    {"-n": true, "--adjustment": true},
	"ionice":  {"-c": true, "-n": true, "--class": true, "--classdata": true},
	"stdbuf":  {"-i": true, "-o": true, "-e": true},
	"timeout": {"-s": true, "--signal": true, "-k": true, "--kill-after": true},
	"env":     {"-u": true, "--unset": true, "-C": true, "--chdir": true},
	"xargs": {
		"-I": true, "-n": true, "-P": true, "-d": true, "-L": true, "-s": true, "-E": true, "-a": true,
		"--arg-file": true, "--delimiter": true, "--max-args": true, "--max-procs": true, "--max-lines": true,
	},
}

// unwrap returns the command a wrapper runs. ok is false when name is not a
// wrapper or, for command -v, does not run anything.
func (in *inspector) unwrap(name string, args []shellWord) ([]shellWord, bool) {
	valueFlags, isWrapper := wrapperValueFlags[name]
	if !isWrapper {
		return nil, false
	}
	if name == "command" && hasFlagPrefix(args, "-v", "-V") {
		return nil, false
	}

	flags, inner := splitWrapperFlags(args, valueFlags)
	switch name {
	case "timeout":
		if len(inner) > 0 {
			inner = inner[1:]
		}
	case "env":
		for len(inner) > 0 && isAssignment(inner[0].Text) {
			inner = inner[1:]
		}
		if dir, ok := flagValue(flags, "-C", "--chdir"); ok && len(inner) > 0 {
			saved := in.dir
			in.chdir([]shellWord{dir})
			in.facts.Scripts = append(in.facts.Scripts, joinWords(inner))
			in.call(inner)
			in.dir = saved
			return nil, true
		}
	case "xargs":
		if len(inner) == 0 {
			return nil, true
		}
		inner = append(append([]shellWord(nil), inner...), stdinOperand)
	}
	return inner, true
}

// splitWrapperFlags separates a wrapper's own flags from the command it runs.
func splitWrapperFlags(args []shellWord, valueFlags map[string]bool) (flags, rest []shellWord) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !arg.Resolved || !strings.HasPrefix(arg.Text, "-") || arg.Text == "-" {
			return args[:i], args[i:]
		}
		if arg.Text == "--" {
			return args[:i], args[i+1:]
		}
		if valueFlags[arg.Text] {
			i++
		}
	}
	return args, nil
}

func flagValue(flags []shellWord, names ...string) (shellWord, bool) {
	for i, flag := range flags {
		for _, name := range names {
			switch {
			case flag.Text == name && i+1 < len(flags):
				return flags[i+1], true
			case strings.HasPrefix(flag.Text, name+"="):
				return shellWord{Text: strings.TrimPrefix(flag.Text, name+"="), Resolved: flag.Resolved}, true
			}
		}
	}
	return shellWord{}, false
}

func isAssignment(text string) bool {
	idx := strings.IndexByte(text, '=')
	if idx <= 0 {
		return false
	}
	for i, r := range text[:idx] {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func isAnchored(p string) bool {
	return filepath.IsAbs(p) || p == "~" || strings.HasPrefix(p, "~/")
}

func joinWords(words []shellWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// wordLiteral flattens a word made only of literal and quoted parts.
func wordLiteral(w *syntax.Word) (string, bool) {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return sb.String(), false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return sb.String(), false
		}
	}
	return sb.String(), true
}

// targetKind tells how a command treats its path arguments.
type targetKind int

const (
	targetNone targetKind = iota
	targetDelete
	targetOverwrite
)

// affectedPaths returns the paths a command deletes or overwrites.
func affectedPaths(cmd simpleCommand) ([]shellWord, targetKind) {
	operands := nonFlagArgs(cmd.Args)
	switch cmd.Name {
	case "rm", "rmdir", "shred", "unlink":
		return operands, targetDelete
	case "mv":
		return operands, targetDelete
	case "truncate", "tee":
		return operands, targetOverwrite
	case "cp", "ln", "install", "rsync":
		if len(operands) == 0 {
			return nil, targetNone
		}
		return operands[len(operands)-1:], targetOverwrite
	case "chmod":
		if len(operands) < 2 {
			return nil, targetNone
		}
		return operands[1:], targetOverwrite
	case "sed":
		if !hasFlagPrefix(cmd.Args, "-i", "--in-place") {
			return nil, targetNone
		}
		if hasFlagPrefix(cmd.Args, "-e", "--expression", "-f", "--file") || len(operands) < 2 {
			return operands, targetOverwrite
		}
		return operands[1:], targetOverwrite
	case "dd":
		for _, arg := range cmd.Args {
			if strings.HasPrefix(arg.Text, "of=") {
				return []shellWord{{Text: strings.TrimPrefix(arg.Text, "of="), Resolved: arg.Resolved}}, targetOverwrite
			}
		}
	case "find":
		if !hasFlagPrefix(cmd.Args, "-delete") && !findExecRemoves(cmd.Args) {
			return nil, targetNone
		}
		var roots []shellWord
		for _, arg := range cmd.Args {
			if strings.HasPrefix(arg.Text, "-") || arg.Text == "(" || arg.Text == "!" {
				break
			}
			roots = append(roots, arg)
		}
		if len(roots) == 0 {
			roots = []shellWord{{Text: ".", Resolved: true}}
		}
		return roots, targetDelete
	}
	return nil, targetNone
}

func nonFlagArgs(args []shellWord) []shellWord {
	var out []shellWord
	endOfFlags := false
	for _, arg := range args {
		if !endOfFlags && arg.Resolved {
			if arg.Text == "--" {
				endOfFlags = true
				continue
			}
			if len(arg.Text) > 1 && strings.HasPrefix(arg.Text, "-") {
				continue
			}
		}
		out = append(out, arg)
	}
	return out
}

func hasFlagPrefix(args []shellWord, prefixes ...string) bool {
	for _, arg := range args {
		for _, prefix := range prefixes {
			if strings.HasPrefix(arg.Text, prefix) {
				return true
			}
		}
	}
	return false
}

func findExecRemoves(args []shellWord) bool {
	for i, arg := range args {
		if (arg.Text == "-exec" || arg.Text == "-execdir") && i+1 < len(args) {
			switch args[i+1].Text {
			case "rm", "shred", "unlink":
				return true
			}
		}
	}
	return false
}

// pathScope decides whether a path lies inside the user's home or work
// directory.
type pathScope struct {
	home    string
	workDir string
	tmpDir  string
}

var pseudoDevices = map[string]bool{
	"/dev/null":   true,
	"/dev/stdout": true,
	"/dev/stderr": true,
	"/dev/tty":    true,
	"/dev/zero":   true,
}

// resolve turns a shell operand into a clean absolute path. Glob suffixes
// are cut back to the directory they expand inside.
func (s pathScope) resolve(p string) string {
	switch {
	case p == "~":
		p = s.home
	case strings.HasPrefix(p, "~/"):
		p = filepath.Join(s.home, p[2:])
	}
	if idx := strings.IndexAny(p, "*?["); idx >= 0 {
		p = p[:idx]
		if p == "" {
			p = "."
		} else if !strings.HasSuffix(p, "/") {
			p = filepath.Dir(p)
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.workDir, p)
	}
	return filepath.Clean(p)
}

// contains reports whether the resolved path is strictly below home or tmp,
// or at/below the work directory. The filesystem root and the home
// directory itself are never in scope.
func (s pathScope) contains(abs string) bool {
	if pseudoDevices[abs] || strings.HasPrefix(abs, "/dev/fd/") {
		return true
	}
	if under(s.home, abs, false) || under(s.tmpDir, abs, false) {
		return true
	}
	if s.workDir != "" && s.workDir != "/" && s.workDir != s.home {
		return under(s.workDir, abs, true)
	}
	return false
}

func under(base, target string, inclusive bool) bool {
	if base == "" {
		return false
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return inclusive
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// scopeFinding is the outcome of checking one destructive operand.
type scopeFinding struct {
	outside    []string
	unresolved []string
	edits      []string
}

// resolveIn resolves p against dir. ok is false for a relative p after a cd
// to an unknown directory.
func (s pathScope) resolveIn(dir shellWord, p string) (string, bool) {
	if !isAnchored(p) {
		if !dir.Resolved {
			return "", false
		}
		if dir.Text != "" {
			p = filepath.Join(dir.Text, p)
		}
	}
	return s.resolve(p), true
}

// checkScope looks at every delete/overwrite operand of a command line.
func (s pathScope) checkScope(facts commandFacts, stat func(string) (os.FileInfo, error)) scopeFinding {
	var finding scopeFinding
	consider := func(word, dir shellWord, kind targetKind, verb string) {
		if !word.Resolved {
			finding.unresolved = append(finding.unresolved, fmt.Sprintf("%s %s", verb, word.Text))
			return
		}
		abs, ok := s.resolveIn(dir, word.Text)
		if !ok {
			finding.unresolved = append(finding.unresolved, fmt.Sprintf("%s %s after cd %s", verb, word.Text, dir.Text))
			return
		}
		if !s.contains(abs) {
			finding.outside = append(finding.outside, fmt.Sprintf("%s %s", verb, abs))
			return
		}
		if kind == targetOverwrite && existingNonTrivial(abs, stat) {
			finding.edits = append(finding.edits, abs)
		}
	}

	for _, cmd := range facts.Commands {
		paths, kind := affectedPaths(cmd)
		for _, p := range paths {
			consider(p, cmd.Dir, kind, cmd.Name)
		}
	}
	for _, w := range facts.Writes {
		consider(w.Word, w.Dir, targetOverwrite, "write to")
	}
	return finding
}

func existingNonTrivial(path string, stat func(string) (os.FileInfo, error)) bool {
	if stat == nil || pseudoDevices[path] {
		return false
	}
	info, err := stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
