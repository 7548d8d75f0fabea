package options_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgforge/pkg/forgeurl"
	"imgforge/pkg/options"
)

func TestParseRegistry(t *testing.T) {
	registry, err := options.ParseRegistry("thumbnail=resize:fit:150:150/quality:80,small=resize:fit:300:300")
	require.NoError(t, err)

	require.Len(t, registry, 2)
	require.Len(t, registry["thumbnail"], 2)
	assert.Equal(t, "resize", registry["thumbnail"][0].Name)
	assert.Equal(t, []string{"fit", "150", "150"}, registry["thumbnail"][0].Args)
	assert.Equal(t, "quality", registry["thumbnail"][1].Name)
}

func TestParseRegistryToleratesSpaces(t *testing.T) {
	registry, err := options.ParseRegistry(" thumb = resize:fit:50:50 , hi = quality:95 ")
	require.NoError(t, err)
	assert.Len(t, registry, 2)
}

func TestParseRegistryEmpty(t *testing.T) {
	registry, err := options.ParseRegistry("")
	require.NoError(t, err)
	assert.Empty(t, registry)
}

func TestParseRegistryInvalidDefinitions(t *testing.T) {
	for _, def := range []string{"thumbnail:resize:fit:1:1", "=quality:80", "thumb="} {
		_, err := options.ParseRegistry(def)
		assert.Error(t, err, def)
	}
}

func TestParseRegistryFlattensOneLevel(t *testing.T) {
	registry, err := options.ParseRegistry("base=quality:80,combo=preset:base/blur:2")
	require.NoError(t, err)

	require.Len(t, registry["combo"], 2)
	assert.Equal(t, "quality", registry["combo"][0].Name)
	assert.Equal(t, "blur", registry["combo"][1].Name)
}

func TestParseRegistryRejectsDeepNesting(t *testing.T) {
	_, err := options.ParseRegistry("a=quality:80,b=preset:a,c=preset:b")
	assert.Error(t, err)
}

func TestParseRegistryRejectsUnknownReference(t *testing.T) {
	_, err := options.ParseRegistry("combo=preset:ghost")
	assert.Error(t, err)
}

func TestExpandSimplePreset(t *testing.T) {
	registry, err := options.ParseRegistry("thumb=resize:fit:50:50/quality:70")
	require.NoError(t, err)

	expanded, err := options.Expand([]forgeurl.Option{{Name: "preset", Args: []string{"thumb"}}}, registry, false)
	require.NoError(t, err)

	require.Len(t, expanded, 2)
	assert.Equal(t, "resize", expanded[0].Name)
	assert.Equal(t, "quality", expanded[1].Name)
}

func TestExpandShortAlias(t *testing.T) {
	registry, err := options.ParseRegistry("thumb=resize:fit:100:100")
	require.NoError(t, err)

	expanded, err := options.Expand([]forgeurl.Option{{Name: "pr", Args: []string{"thumb"}}}, registry, false)
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.Equal(t, "resize", expanded[0].Name)
}

func TestExpandDefaultPresetPrepended(t *testing.T) {
	registry, err := options.ParseRegistry("default=quality:70,hi=quality:95")
	require.NoError(t, err)

	expanded, err := options.Expand([]forgeurl.Option{{Name: "preset", Args: []string{"hi"}}}, registry, false)
	require.NoError(t, err)

	// Default first, then the explicit preset: last-wins gives quality 95.
	require.Len(t, expanded, 2)
	po, err := options.ParseAll(expanded)
	require.NoError(t, err)
	assert.Equal(t, 95, po.Quality)
}

func TestExpandDefaultAppliesToPlainOptions(t *testing.T) {
	registry, err := options.ParseRegistry("default=quality:70/dpr:2")
	require.NoError(t, err)

	expanded, err := options.Expand([]forgeurl.Option{{Name: "blur", Args: []string{"3"}}}, registry, false)
	require.NoError(t, err)

	require.Len(t, expanded, 3)
	assert.Equal(t, "quality", expanded[0].Name)
	assert.Equal(t, "dpr", expanded[1].Name)
	assert.Equal(t, "blur", expanded[2].Name)
}

func TestExpandUnknownPreset(t *testing.T) {
	_, err := options.Expand([]forgeurl.Option{{Name: "preset", Args: []string{"ghost"}}}, options.Registry{}, false)

	var unknown *options.UnknownPresetError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Name)
}

func TestExpandPresetWithoutName(t *testing.T) {
	_, err := options.Expand([]forgeurl.Option{{Name: "preset"}}, options.Registry{}, false)
	assert.Error(t, err)
}

func TestOnlyPresetsRejectsFirstOffender(t *testing.T) {
	registry, err := options.ParseRegistry("thumb=resize:fit:50:50")
	require.NoError(t, err)

	_, err = options.Expand([]forgeurl.Option{
		{Name: "preset", Args: []string{"thumb"}},
		{Name: "blur", Args: []string{"2"}},
		{Name: "quality", Args: []string{"80"}},
	}, registry, true)

	var violation *options.PresetsOnlyError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "blur", violation.Directive)
}

func TestOnlyPresetsAllowsPresetReferences(t *testing.T) {
	registry, err := options.ParseRegistry("thumb=resize:fit:50:50")
	require.NoError(t, err)

	expanded, err := options.Expand([]forgeurl.Option{{Name: "preset", Args: []string{"thumb"}}}, registry, true)
	require.NoError(t, err)
	assert.Len(t, expanded, 1)
}

func TestOnlyPresetsAllowsEmptyList(t *testing.T) {
	registry, err := options.ParseRegistry("default=quality:90")
	require.NoError(t, err)

	expanded, err := options.Expand(nil, registry, true)
	require.NoError(t, err)
	assert.Len(t, expanded, 1)
}

func TestExpandIsIdempotent(t *testing.T) {
	registry, err := options.ParseRegistry("thumb=resize:fit:50:50/quality:70")
	require.NoError(t, err)

	once, err := options.Expand([]forgeurl.Option{{Name: "preset", Args: []string{"thumb"}}}, registry, false)
	require.NoError(t, err)

	twice, err := options.Expand(once, registry, false)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestParseOptionStringSkipsEmptyFragments(t *testing.T) {
	opts, err := options.ParseOptionString("resize:fit:300:300//quality:85/")
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}
