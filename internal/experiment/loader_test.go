package experiment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entprobe/internal/verify"
)

const experimentYAML = `
experiments:
  - name: cluster-synthesis
    description: does a bare QueueSample produce a cluster entity
    entityType: MESSAGE_QUEUE_CLUSTER
    vars:
      suffix: ${random_string(8)}
    identifiers:
      clusterName: probe-${suffix}
    overrides:
      provider: RabbitMq
      region: ${env:ENTPROBE_TEST_REGION}
    metrics:
      - name: queue.depth
        value: 42
      - name: queue.publishRate
        mode: subset
        statistics: [sum, count]
        value: 10
    expectations:
      - name: cluster entity appears
        kind: entity-exists
        query: FROM entities SELECT * WHERE name = '${clusterName}'
        timeout: 2m
      - name: contains topic
        kind: relationship-exists
        source: ${clusterName}
        relationship: CONTAINS
        target: ${clusterName}-topic
`

func TestParse_ResolvesPlaceholdersConsistently(t *testing.T) {
	t.Setenv("ENTPROBE_TEST_REGION", "eu-central-1")

	exps, err := Parse([]byte(experimentYAML), nil)
	require.NoError(t, err)
	require.Len(t, exps, 1)

	e := exps[0]
	assert.Equal(t, "cluster-synthesis", e.Name)
	assert.Equal(t, "MESSAGE_QUEUE_CLUSTER", e.EntityType)

	cluster := e.Identifiers["clusterName"]
	require.Regexp(t, `^probe-[a-z0-9]{8}$`, cluster)

	// The generated suffix must be identical everywhere it is referenced.
	assert.Contains(t, e.Expectations[0].Query, "'"+cluster+"'")
	assert.Equal(t, cluster, e.Expectations[1].Source)
	assert.Equal(t, cluster+"-topic", e.Expectations[1].Target)

	assert.Equal(t, "eu-central-1", e.Overrides["region"])
	assert.Equal(t, 2*time.Minute, e.Expectations[0].Timeout)
	assert.Equal(t, verify.KindRelationshipExists, e.Expectations[1].Kind)
}

func TestParse_ParamsOverrideVars(t *testing.T) {
	yaml := `
name: single
entityType: T
vars:
  suffix: from-file
identifiers:
  clusterName: probe-${suffix}
`
	exps, err := Parse([]byte(yaml), map[string]string{"suffix": "from-cli"})
	require.NoError(t, err)
	assert.Equal(t, "probe-from-cli", exps[0].Identifiers["clusterName"])
}

func TestParse_BareSingleExperiment(t *testing.T) {
	yaml := `
name: single
entityType: MESSAGE_QUEUE_CLUSTER
identifiers:
  clusterName: probe-x
`
	exps, err := Parse([]byte(yaml), nil)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "single", exps[0].Name)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "{}", "no experiments"},
		{"no entity type", "name: x\nidentifiers: {a: b}", "no entity type"},
		{"no identifiers", "name: x\nentityType: T", "no identifiers"},
		{
			"bad metric mode",
			"name: x\nentityType: T\nidentifiers: {a: b}\nmetrics:\n  - {name: m, mode: sometimes}",
			"unknown mode",
		},
		{
			"subset without statistics",
			"name: x\nentityType: T\nidentifiers: {a: b}\nmetrics:\n  - {name: m, mode: subset}",
			"needs statistics",
		},
		{
			"unknown statistic",
			"name: x\nentityType: T\nidentifiers: {a: b}\nmetrics:\n  - {name: m, mode: subset, statistics: [median]}",
			"unknown statistic",
		},
		{
			"bad expectation",
			"name: x\nentityType: T\nidentifiers: {a: b}\nexpectations:\n  - {kind: entity-exists}",
			"requires a query",
		},
		{
			"unresolved variable",
			"name: x\nentityType: T\nidentifiers: {a: '${missing}'}",
			"not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nentityType: T\nidentifiers: {a: b}"), 0o644))

	exps, err := Load(path, nil)
	require.NoError(t, err)
	assert.Len(t, exps, 1)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}
