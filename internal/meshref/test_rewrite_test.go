package meshref

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixtureprep/internal/meshindex"
	"fixtureprep/internal/safeio"
)

func index(paths ...string) meshindex.Index {
	m := make(map[meshindex.Key]string, len(paths))
	for _, p := range paths {
		k, ok := meshindex.KeyFor(p)
		if !ok {
			panic("not a mesh: " + p)
		}
		if _, dup := m[k]; !dup {
			m[k] = p
		}
	}
	return meshindex.New(m)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, []string{".dae", ".stl", ".obj"}, FormatDAE.Priority())
	assert.Equal(t, []string{".stl", ".dae", ".obj"}, FormatSTL.Priority())
	assert.Equal(t, []string{".dae", ".stl", ".obj"}, FormatUnity.Priority())
	assert.Equal(t, []string{".obj", ".dae", ".stl"}, FormatMJCF.Priority())
	assert.Nil(t, Format("fbx").Priority())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" mjcf ")
	require.NoError(t, err)
	assert.Equal(t, FormatMJCF, f)

	_, err = ParseFormat("DAE")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	_, err = ParseFormat("")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestRewrite_MJCFFallbackOrder(t *testing.T) {
	idx := index("foo.stl", "foo.dae")
	out, oc, err := Rewrite(`<mesh filename="foo.obj"/>`, idx, FormatMJCF)
	require.NoError(t, err)
	assert.Equal(t, `<mesh filename="foo.dae"/>`, out)
	assert.Equal(t, Outcome{Updated: 1}, oc)
}

func TestRewrite_IgnoresReferencedExtension(t *testing.T) {
	idx := index("meshes/arm.dae", "meshes/arm.stl")
	out, _, err := Rewrite(`filename="package://bot/arm.stl"`, idx, FormatDAE)
	require.NoError(t, err)
	assert.Equal(t, `filename="meshes/arm.dae"`, out)

	out, _, err = Rewrite(`filename="package://bot/arm.dae"`, idx, FormatSTL)
	require.NoError(t, err)
	assert.Equal(t, `filename="meshes/arm.stl"`, out)
}

func TestRewrite_UnresolvedLeftVerbatim(t *testing.T) {
	idx := index("a.dae")
	in := `<a filename="..\Meshes\Missing.DAE"/> <b filename="a.obj"/>`
	out, oc, err := Rewrite(in, idx, FormatDAE)
	require.NoError(t, err)
	assert.Equal(t, `<a filename="..\Meshes\Missing.DAE"/> <b filename="a.dae"/>`, out)
	assert.Equal(t, Outcome{Updated: 1, Unresolved: 1}, oc)
}

func TestRewrite_OnlyExactAttributeShape(t *testing.T) {
	idx := index("a.dae")
	in := `filename='a.dae' filename="" filename=a.dae FILENAME="a.dae" xfilename="a.obj"`
	out, oc, err := Rewrite(in, idx, FormatDAE)
	require.NoError(t, err)
	// "xfilename=" still contains the attribute text and is rewritten.
	assert.Equal(t, `filename='a.dae' filename="" filename=a.dae FILENAME="a.dae" xfilename="a.dae"`, out)
	assert.Equal(t, Outcome{Updated: 1}, oc)
}

func TestRewrite_Idempotent(t *testing.T) {
	idx := index("meshes/link1.dae", "meshes/sub/link1.stl")
	in := `<mesh filename="link1.obj"/><mesh filename="missing.dae"/>`
	once, first, err := Rewrite(in, idx, FormatDAE)
	require.NoError(t, err)
	twice, second, err := Rewrite(once, idx, FormatDAE)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, Outcome{Updated: 1, Unresolved: 1}, first)
	assert.Equal(t, first, second)
}

func TestRewrite_UnsupportedFormat(t *testing.T) {
	_, _, err := Rewrite("", meshindex.Index{}, Format("fbx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestResolverCacheMatchesUncached(t *testing.T) {
	idx := index("x.obj", "y.stl", "z.dae")
	r, err := NewResolver(idx, FormatSTL)
	require.NoError(t, err)
	for _, ref := range []string{"x.dae", "y.obj", "z.stl", "w.stl", "X.DAE"} {
		p1, ok1 := r.Resolve(ref)
		p2, ok2 := r.Resolve(ref)
		assert.Equal(t, p1, p2, ref)
		assert.Equal(t, ok1, ok2, ref)
	}
	p, ok := r.Resolve("X.DAE")
	assert.True(t, ok)
	assert.Equal(t, "x.obj", p)
}

func TestRewriteFile_EndToEnd(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("meshes/link1.dae", "")
	write("meshes/sub/link1.stl", "")
	write("robot.urdf", `<robot>
  <visual><mesh filename="link1.obj"/></visual>
  <collision><mesh filename="link1.obj"/></collision>
  <visual><mesh filename="missing.dae"/></visual>
</robot>
`)

	idx, err := meshindex.Build(root)
	require.NoError(t, err)
	p, _ := idx.Lookup("link1", ".dae")
	assert.Equal(t, "meshes/link1.dae", p)
	p, _ = idx.Lookup("link1", ".stl")
	assert.Equal(t, "meshes/sub/link1.stl", p)

	fsys, err := safeio.NewSafeFS(root)
	require.NoError(t, err)
	r, err := NewResolver(idx, FormatDAE)
	require.NoError(t, err)

	oc, err := r.RewriteFile(fsys, "robot.urdf")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Updated: 2, Unresolved: 1}, oc)

	b, err := os.ReadFile(filepath.Join(root, "robot.urdf"))
	require.NoError(t, err)
	assert.Equal(t, `<robot>
  <visual><mesh filename="meshes/link1.dae"/></visual>
  <collision><mesh filename="meshes/link1.dae"/></collision>
  <visual><mesh filename="missing.dae"/></visual>
</robot>
`, string(b))
}

func TestRewriteFile_Errors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.urdf"), []byte{0xff, 0xfe, 'x'}, 0o644))
	fsys, err := safeio.NewSafeFS(root)
	require.NoError(t, err)
	r, err := NewResolver(meshindex.Index{}, FormatDAE)
	require.NoError(t, err)

	_, err = r.RewriteFile(fsys, "missing.urdf")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = r.RewriteFile(fsys, "bad.urdf")
	assert.ErrorIs(t, err, ErrNotUTF8)
}

func TestRewriteFile_KeepsLineEndings(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "meshes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "meshes", "link1.dae"), nil, 0o644))
	in := "<robot>\r\n  <mesh filename=\"link1.obj\"/>\r\n  <mesh filename=\"gone.stl\"/>\n</robot>\r\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "robot.urdf"), []byte(in), 0o644))

	idx, err := meshindex.Build(root)
	require.NoError(t, err)
	fsys, err := safeio.NewSafeFS(root)
	require.NoError(t, err)
	r, err := NewResolver(idx, FormatDAE)
	require.NoError(t, err)

	oc, err := r.RewriteFile(fsys, "robot.urdf")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Updated: 1, Unresolved: 1}, oc)

	got, err := os.ReadFile(filepath.Join(root, "robot.urdf"))
	require.NoError(t, err)
	assert.Equal(t, "<robot>\r\n  <mesh filename=\"meshes/link1.dae\"/>\r\n  <mesh filename=\"gone.stl\"/>\n</robot>\r\n", string(got))
}
