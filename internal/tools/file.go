package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ===========================================================================
// SANDBOX
// ===========================================================================

// Sandbox confines file tools to one workspace directory.
type Sandbox struct {
	root string
}

// sensitivePaths are never read, even inside the workspace.
var sensitivePaths = []*regexp.Regexp{
	regexp.MustCompile(`\.ssh/`),
	regexp.MustCompile(`\.aws/credentials`),
	regexp.MustCompile(`\.netrc$`),
	regexp.MustCompile(`\.npmrc$`),
	regexp.MustCompile(`\.env$`),
	regexp.MustCompile(`\.env\.local$`),
	regexp.MustCompile(`credentials\.json$`),
	regexp.MustCompile(`secrets\.ya?ml$`),
}

// NewSandbox creates root if needed and returns a sandbox rooted there.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Sandbox{root: abs}, nil
}

// Root returns the absolute workspace directory.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a workspace-relative path to an absolute one. Absolute
// paths and paths climbing out of the workspace are rejected.
func (s *Sandbox) Resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	full := filepath.Join(s.root, rel)
	if !s.contains(full) {
		return "", fmt.Errorf("path escapes workspace: %s", rel)
	}
	return full, nil
}

func (s *Sandbox) contains(path string) bool {
	r, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return r == "." || (r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)))
}

// risk grades a path: outside the workspace is critical, sensitive names high.
func (s *Sandbox) risk(rel string, base RiskLevel) RiskLevel {
	if _, err := s.Resolve(rel); err != nil {
		return RiskCritical
	}
	slashed := filepath.ToSlash(rel)
	for _, pattern := range sensitivePaths {
		if pattern.MatchString(slashed) {
			return RiskHigh
		}
	}
	return base
}

// ===========================================================================
// FILE WRITE TOOL
// ===========================================================================

// FileWriteTool writes files inside the sandbox, creating parent directories.
type FileWriteTool struct {
	sandbox  *Sandbox
	maxBytes int
}

// NewFileWriteTool creates a write tool limited to 1MB per file.
func NewFileWriteTool(sb *Sandbox) *FileWriteTool {
	return &FileWriteTool{sandbox: sb, maxBytes: 1 << 20}
}

func (w *FileWriteTool) Name() string { return ToolFileWrite }

func (w *FileWriteTool) Description() string {
	return "Write a text file in the task workspace"
}

func (w *FileWriteTool) Parameters() string {
	return `{"path": "relative path", "content": "file text", "append": false}`
}

func (w *FileWriteTool) Validate(params Params) error {
	if _, err := w.sandbox.Resolve(params.String("path")); err != nil {
		return err
	}
	if _, ok := params["content"]; !ok {
		return fmt.Errorf("content parameter required")
	}
	if n := len(params.String("content")); n > w.maxBytes {
		return fmt.Errorf("content too large: %d bytes (max: %d)", n, w.maxBytes)
	}
	return nil
}

func (w *FileWriteTool) AssessRisk(params Params) RiskLevel {
	return w.sandbox.risk(params.String("path"), RiskLow)
}

func (w *FileWriteTool) Execute(ctx context.Context, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := w.sandbox.Resolve(params.String("path"))
	if err != nil {
		return "", err
	}
	content := params.String("content")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if params.Bool("append") {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	rel, _ := filepath.Rel(w.sandbox.root, path)
	return fmt.Sprintf("wrote %d bytes to %s", len(content), filepath.ToSlash(rel)), nil
}

// ===========================================================================
// FILE READ TOOL
// ===========================================================================

// FileReadTool reads files inside the sandbox.
type FileReadTool struct {
	sandbox     *Sandbox
	maxFileSize int64
}

// NewFileReadTool creates a read tool limited to 10MB files.
func NewFileReadTool(sb *Sandbox) *FileReadTool {
	return &FileReadTool{sandbox: sb, maxFileSize: 10 * 1024 * 1024}
}

func (r *FileReadTool) Name() string { return ToolFileRead }

func (r *FileReadTool) Description() string {
	return "Read a text file from the task workspace"
}

func (r *FileReadTool) Parameters() string {
	return `{"path": "relative path"}`
}

func (r *FileReadTool) Validate(params Params) error {
	path, err := r.sandbox.Resolve(params.String("path"))
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", params.String("path"))
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", params.String("path"))
	}
	if info.Size() > r.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d)", info.Size(), r.maxFileSize)
	}
	return nil
}

func (r *FileReadTool) AssessRisk(params Params) RiskLevel {
	return r.sandbox.risk(params.String("path"), RiskNone)
}

func (r *FileReadTool) Execute(ctx context.Context, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := r.sandbox.Resolve(params.String("path"))
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(content), nil
}

// ===========================================================================
// LIST FILES TOOL
// ===========================================================================

// ListFilesTool lists workspace entries. Directories end in "/".
type ListFilesTool struct {
	sandbox    *Sandbox
	maxResults int
}

// NewListFilesTool creates a listing tool capped at 500 entries.
func NewListFilesTool(sb *Sandbox) *ListFilesTool {
	return &ListFilesTool{sandbox: sb, maxResults: 500}
}

func (l *ListFilesTool) Name() string { return ToolListFiles }

func (l *ListFilesTool) Description() string {
	return "List files in the task workspace"
}

func (l *ListFilesTool) Parameters() string {
	return `{"path": "relative directory, default .", "recursive": false}`
}

func (l *ListFilesTool) dir(params Params) string {
	if p := strings.TrimSpace(params.String("path")); p != "" {
		return p
	}
	return "."
}

func (l *ListFilesTool) Validate(params Params) error {
	path, err := l.sandbox.Resolve(l.dir(params))
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory not found: %s", l.dir(params))
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", l.dir(params))
	}
	return nil
}

func (l *ListFilesTool) AssessRisk(params Params) RiskLevel {
	return l.sandbox.risk(l.dir(params), RiskNone)
}

func (l *ListFilesTool) Execute(ctx context.Context, params Params) (string, error) {
	base, err := l.sandbox.Resolve(l.dir(params))
	if err != nil {
		return "", err
	}
	recursive := params.Bool("recursive")

	var entries []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == base {
			return nil
		}
		rel, _ := filepath.Rel(l.sandbox.root, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			entries = append(entries, rel+"/")
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, rel)
		if len(entries) >= l.maxResults {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}

	if len(entries) == 0 {
		return "(empty)", nil
	}
	sort.Strings(entries)
	return strings.Join(entries, "\n"), nil
}

// ===========================================================================
// REGISTRATION
// ===========================================================================

// RegisterFileTools adds file_write, file_read and list_files for sb.
func RegisterFileTools(r *Registry, sb *Sandbox) error {
	for _, t := range []Tool{NewFileWriteTool(sb), NewFileReadTool(sb), NewListFilesTool(sb)} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
