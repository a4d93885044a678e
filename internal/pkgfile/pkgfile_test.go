package pkgfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roselite-project/roselite/internal/crypto"
	"github.com/roselite-project/roselite/internal/model"
)

func writeTestSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html><body>Hello</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi')"), 0o644))
	assetsDir := filepath.Join(dir, "assets")
	require.NoError(t, os.MkdirAll(assetsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assetsDir, "style.css"), []byte("body{color:blue}"), 0o644))
	return dir
}

func TestBuilderBuildsValidPackage(t *testing.T) {
	dir := writeTestSourceDir(t)

	pkg, err := NewBuilder("test-app", dir).
		Version("1.0.0").
		Description("A test application").
		Developer("Test Developer").
		Entry("index.html").
		Tags([]string{"test", "demo"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "test-app", pkg.Manifest.Name)
	assert.Equal(t, "1.0.0", pkg.Manifest.Version)
	assert.Equal(t, "A test application", pkg.Manifest.Description)
	assert.Equal(t, "Test Developer", pkg.Manifest.Developer)
	assert.Equal(t, "index.html", pkg.Manifest.Entry)
	assert.Equal(t, []string{"test", "demo"}, pkg.Manifest.Tags)
	assert.NotEmpty(t, pkg.Manifest.Signature)
	assert.NotEmpty(t, pkg.Manifest.PublicKey)
	assert.NotZero(t, pkg.SizeBytes)
	assert.NotEmpty(t, pkg.Content)

	ok, err := pkg.VerifySignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuilderWithExplicitKeypair(t *testing.T) {
	dir := writeTestSourceDir(t)

	pub, sec, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)

	pkg, err := NewBuilder("test-app", dir).
		Entry("index.html").
		Description("desc").
		Developer("dev").
		Version("0.1.0").
		Keypair(pub, sec).
		Build()
	require.NoError(t, err)

	ok, err := pkg.VerifySignature()
	require.NoError(t, err)
	assert.True(t, ok)

	pkg.Manifest.Signature = ""
	ok, err = pkg.VerifySignature()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFromBytesRoundTrip(t *testing.T) {
	dir := writeTestSourceDir(t)

	built, err := NewBuilder("roundtrip-app", dir).
		Version("2.0.0").
		Description("desc").
		Developer("dev").
		Entry("index.html").
		Build()
	require.NoError(t, err)

	loaded, err := FromBytes(built.Content)
	require.NoError(t, err)

	assert.Equal(t, built.Manifest.Name, loaded.Manifest.Name)
	assert.Equal(t, built.Manifest.Signature, loaded.Manifest.Signature)

	ok, err := loaded.VerifySignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFromBytesRejectsInvalidArchive(t *testing.T) {
	_, err := FromBytes([]byte("not a real archive"))
	assert.Error(t, err)
}

func TestExtractFilesSkipsManifest(t *testing.T) {
	dir := writeTestSourceDir(t)

	pkg, err := NewBuilder("extract-app", dir).
		Version("1.0.0").
		Description("desc").
		Developer("dev").
		Entry("index.html").
		Build()
	require.NoError(t, err)

	files, err := pkg.ExtractFiles()
	require.NoError(t, err)

	_, hasManifest := files[ManifestFilename]
	assert.False(t, hasManifest)
	assert.Contains(t, files, "index.html")
	assert.Contains(t, files, "app.js")
	assert.Contains(t, files, "assets/style.css")

	entry, err := pkg.GetEntryFile()
	require.NoError(t, err)
	assert.Equal(t, "<html><body>Hello</body></html>", string(entry))

	missing, err := pkg.GetFile("does/not/exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestValidateManifestRequiredFields(t *testing.T) {
	valid := model.Manifest{
		Name:        "test-app",
		Version:     "1.0.0",
		Description: "Test app",
		Developer:   "Developer",
		Entry:       "index.html",
		Identity:    "test-identity",
	}
	require.NoError(t, ValidateManifest(&valid))

	cases := []func(*model.Manifest){
		func(m *model.Manifest) { m.Name = "" },
		func(m *model.Manifest) { m.Version = "" },
		func(m *model.Manifest) { m.Description = "" },
		func(m *model.Manifest) { m.Developer = "" },
		func(m *model.Manifest) { m.Entry = "" },
		func(m *model.Manifest) { m.Identity = "" },
	}
	for _, mutate := range cases {
		m := valid
		mutate(&m)
		assert.Error(t, ValidateManifest(&m))
	}
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "my-cool-app", model.GenerateSlug("My Cool App"))
	assert.Equal(t, "my-cool-app", model.GenerateSlug("my_cool-app"))
	assert.Equal(t, "app42", model.GenerateSlug("  App42!! "))
}
