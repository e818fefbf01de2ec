package vault

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ObsidianConfig configures the markdown-vault backend.
type ObsidianConfig struct {
	Root         string // vault root directory
	GitEnabled   bool
	GitUserName  string
	GitUserEmail string
}

// Obsidian stores notes as markdown files with YAML frontmatter inside
// an Obsidian vault. Layout: Projects/<title>/materials/,
// Knowledge/<area>/materials/, and Inbox/ for provisional notes.
// When git sync is enabled each write/delete is committed and pushed;
// git failures are logged, never fatal; the file on disk is the ack.
type Obsidian struct {
	cfg    ObsidianConfig
	logger *slog.Logger
}

func NewObsidian(cfg ObsidianConfig) *Obsidian {
	if cfg.GitUserName == "" {
		cfg.GitUserName = "Engram"
	}
	if cfg.GitUserEmail == "" {
		cfg.GitUserEmail = "engram@localhost"
	}
	return &Obsidian{cfg: cfg, logger: slog.Default()}
}

func (o *Obsidian) Write(ctx context.Context, note Note) (string, error) {
	relDir := noteDir(note)
	dir := filepath.Join(o.cfg.Root, relDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &PersistenceError{Op: "write", Reason: "creating vault directory", Err: err}
	}

	name := fmt.Sprintf("%s-%s.md", note.CreatedAt.Format("20060102"), safeFilename(note.Title))
	relPath := filepath.Join(relDir, name)

	doc := frontmatter(note) + "\n" + note.Markdown()
	if err := os.WriteFile(filepath.Join(o.cfg.Root, relPath), []byte(doc), 0o644); err != nil {
		return "", &PersistenceError{Op: "write", Reason: "writing note file", Err: err}
	}
	o.logger.Info("note written", "path", relPath)

	o.gitSync(ctx, relPath, fmt.Sprintf("engram: save %s", note.Title))
	return relPath, nil
}

func (o *Obsidian) Delete(ctx context.Context, path string) error {
	full := filepath.Join(o.cfg.Root, path)
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			// Already gone; deletion is idempotent.
			return nil
		}
		return &PersistenceError{Op: "delete", Reason: "removing note file", Err: err}
	}
	o.logger.Info("note deleted", "path", path)

	o.gitSync(ctx, path, fmt.Sprintf("engram: expire %s", filepath.Base(path)))
	return nil
}

func noteDir(note Note) string {
	switch {
	case note.Project != "":
		return filepath.Join("Projects", safeFilename(note.Project), "materials")
	case note.Area != "":
		return filepath.Join("Knowledge", safeFilename(note.Area), "materials")
	default:
		return "Inbox"
	}
}

func frontmatter(note Note) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", note.ID)
	fmt.Fprintf(&b, "title: %q\n", note.Title)
	if note.SourceRef != "" {
		fmt.Fprintf(&b, "source: %q\n", note.SourceRef)
	}
	fmt.Fprintf(&b, "source_type: %s\n", note.SourceKind)
	fmt.Fprintf(&b, "created: %s\n", note.CreatedAt.Format("2006-01-02 15:04"))
	if note.ExpiresAt != nil {
		fmt.Fprintf(&b, "expires: %s\n", note.ExpiresAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "tags: [engram, %s]\n", note.SourceKind)
	b.WriteString("---\n")
	return b.String()
}

// safeFilename strips characters that are unsafe in file names and
// truncates to a sane length.
func safeFilename(name string) string {
	const unsafe = `<>:"/\|?*`
	var b strings.Builder
	for _, r := range name {
		if !strings.ContainsRune(unsafe, r) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > 50 {
		out = string(runes[:50])
	}
	if out == "" {
		out = "untitled"
	}
	return out
}

// gitSync commits one path and pushes. Every step is best-effort: a
// sync problem must not fail the write that produced the file.
func (o *Obsidian) gitSync(ctx context.Context, relPath, message string) {
	if !o.cfg.GitEnabled {
		return
	}

	root := o.cfg.Root
	commands := [][]string{
		{"git", "-C", root, "pull", "--rebase"},
		{"git", "-C", root, "add", relPath},
		{"git", "-C", root,
			"-c", "user.name=" + o.cfg.GitUserName,
			"-c", "user.email=" + o.cfg.GitUserEmail,
			"commit", "-m", message},
		{"git", "-C", root, "push"},
	}

	for _, args := range commands {
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		out, err := cmd.CombinedOutput()
		if err != nil && !strings.Contains(string(out), "nothing to commit") {
			o.logger.Warn("git sync step failed",
				"cmd", strings.Join(args[3:], " "), "error", err, "output", strings.TrimSpace(string(out)))
		}
	}
}
