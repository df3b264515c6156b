package template

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute_Variables(t *testing.T) {
	vars := map[string]string{"cluster": "probe-kafka", "topic": "orders"}

	got, err := Substitute("cluster ${cluster} topic ${topic}", vars)
	require.NoError(t, err)
	assert.Equal(t, "cluster probe-kafka topic orders", got)
}

func TestSubstitute_NoPlaceholders(t *testing.T) {
	got, err := Substitute("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)
}

func TestSubstitute_MissingVariable(t *testing.T) {
	_, err := Substitute("${missing}", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `variable "missing" not found`)
}

func TestSubstitute_Env(t *testing.T) {
	t.Setenv("ENTPROBE_TEST_VALUE", "from-env")

	got, err := Substitute("${env:ENTPROBE_TEST_VALUE}", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	_, err = Substitute("${env:ENTPROBE_DEFINITELY_UNSET}", nil)
	assert.Error(t, err)
}

func TestSubstitute_Functions(t *testing.T) {
	got, err := Substitute("${uuid()}", nil)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), got)

	got, err = Substitute("${timestamp()}", nil)
	require.NoError(t, err)
	_, perr := strconv.ParseInt(got, 10, 64)
	assert.NoError(t, perr)

	got, err = Substitute("${random(5,5)}", nil)
	require.NoError(t, err)
	assert.Equal(t, "5", got)

	got, err = Substitute("${random_string(12)}", nil)
	require.NoError(t, err)
	assert.Len(t, got, 12)
}

func TestSubstitute_FunctionErrors(t *testing.T) {
	_, err := Substitute("${random(10,1)}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be <=")

	_, err = Substitute("${uuid(extra)}", nil)
	require.Error(t, err)

	_, err = Substitute("${random_string(0)}", nil)
	require.Error(t, err)
}

func TestSubstitute_UnknownFunctionFallsThroughToVariable(t *testing.T) {
	// An unrecognized call shape is treated as a variable name.
	_, err := Substitute("${nope(1)}", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSubstituteMap(t *testing.T) {
	vars := map[string]string{"name": "probe"}

	got, err := SubstituteMap(map[string]string{"a": "${name}-1", "b": "static"}, vars)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "probe-1", "b": "static"}, got)

	got, err = SubstituteMap(nil, vars)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = SubstituteMap(map[string]string{"a": "${gone}"}, vars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "a"`)
}
