package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileRegistry(t *testing.T) (*Registry, *Sandbox) {
	t.Helper()
	sb, err := NewSandbox(filepath.Join(t.TempDir(), "workspace"))
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, RegisterFileTools(r, sb))
	return r, sb
}

func TestSandbox_Resolve(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"report.md", false},
		{"site/index.html", false},
		{"./notes/../notes.md", false},
		{".", false},
		{"", true},
		{"../outside.txt", true},
		{"a/../../outside.txt", true},
		{"/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := sb.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, sb.contains(got))
		})
	}
}

func TestFileTools_WriteReadList(t *testing.T) {
	r, sb := newFileRegistry(t)
	ctx := context.Background()

	res := r.Execute(ctx, ToolFileWrite, Params{"path": "site/index.html", "content": "<h1>Hi</h1>"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "wrote 11 bytes to site/index.html", res.Payload)
	assert.Equal(t, RiskLow, res.Risk)

	data, err := os.ReadFile(filepath.Join(sb.Root(), "site", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1>", string(data))

	res = r.Execute(ctx, ToolFileWrite, Params{"path": "site/index.html", "content": "\n<p>more</p>", "append": true})
	require.True(t, res.Success, res.Error)

	res = r.Execute(ctx, ToolFileRead, Params{"path": "site/index.html"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "<h1>Hi</h1>\n<p>more</p>", res.Payload)

	require.True(t, r.Execute(ctx, ToolFileWrite, Params{"path": "README.md", "content": "# Site"}).Success)

	res = r.Execute(ctx, ToolListFiles, Params{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "README.md\nsite/", res.Payload)

	res = r.Execute(ctx, ToolListFiles, Params{"recursive": true})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "README.md\nsite/\nsite/index.html", res.Payload)
}

func TestFileTools_Rejections(t *testing.T) {
	r, _ := newFileRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		tool    string
		params  Params
		errText string
	}{
		{"write outside", ToolFileWrite, Params{"path": "../escape.txt", "content": "x"}, "escapes workspace"},
		{"write absolute", ToolFileWrite, Params{"path": "/tmp/x.txt", "content": "x"}, "absolute paths"},
		{"write without content", ToolFileWrite, Params{"path": "a.txt"}, "content parameter required"},
		{"write secrets", ToolFileWrite, Params{"path": "config/.env", "content": "KEY=1"}, "risk level exceeds policy"},
		{"read missing", ToolFileRead, Params{"path": "nope.txt"}, "file not found"},
		{"read directory", ToolFileRead, Params{"path": "."}, "directory"},
		{"list missing", ToolListFiles, Params{"path": "nowhere"}, "directory not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Execute(ctx, tt.tool, tt.params)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.errText)
		})
	}
}

func TestListFiles_Empty(t *testing.T) {
	r, _ := newFileRegistry(t)
	res := r.Execute(context.Background(), ToolListFiles, nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "(empty)", res.Payload)
}
