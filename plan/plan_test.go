package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgwd-dev/hgwd/sched"
)

const samplePlan = `
[run]
steal_fraction = 0.5
reserved_home_ram = 32.0
safety_buffer_ms = 200
retry_delay_ms = 1000
auto_root = true
journal = "out/journal.db"

[targets.joesguns]
strategy = "GW"
workers = ["pserv-0", "pserv-1"]

[targets.phantasy]
strategy = "MWG"
steal_fraction = 0.25
workers = ["pserv-2"]
`

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPlan(t *testing.T) {
	path := writePlan(t, samplePlan)
	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, p.Run.StealFraction)
	assert.Equal(t, 32.0, p.Run.ReservedHomeRAM)
	assert.Equal(t, 200*time.Millisecond, p.Run.SafetyBuffer())
	assert.Equal(t, time.Second, p.Run.RetryDelay())
	assert.True(t, p.Run.AutoRoot)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "out", "journal.db"), p.Run.Journal,
		"relative journal path resolves against the plan file")

	require.Len(t, p.Targets, 2)
	assert.Equal(t, []string{"pserv-0", "pserv-1"}, p.Targets["joesguns"].Workers)
}

func TestPlanEffectiveValues(t *testing.T) {
	p, err := Load(writePlan(t, samplePlan))
	require.NoError(t, err)

	assert.Equal(t, 0.5, p.Steal("joesguns"), "run default applies")
	assert.Equal(t, 0.25, p.Steal("phantasy"), "target override wins")

	st, err := p.Strategy("joesguns")
	require.NoError(t, err)
	assert.Equal(t, sched.GrowWeaken, st)

	st, err = p.Strategy("unlisted")
	require.NoError(t, err)
	assert.Equal(t, sched.WeakenGrow, st, "unlisted targets get the default strategy")
}

func TestPlanValidation(t *testing.T) {
	cases := map[string]string{
		"bad steal fraction": strings.Replace(samplePlan, "steal_fraction = 0.5", "steal_fraction = 1.5", 1),
		"bad strategy":       strings.Replace(samplePlan, `strategy = "GW"`, `strategy = "HGW"`, 1),
		"double-booked worker": strings.Replace(samplePlan,
			`workers = ["pserv-2"]`, `workers = ["pserv-0"]`, 1),
		"no targets": "[run]\nsteal_fraction = 0.5\n",
	}
	for name, body := range cases {
		_, err := Load(writePlan(t, body))
		assert.Error(t, err, name)
	}
}

func TestPlanPolicyOnly(t *testing.T) {
	body := `
[run]
steal_fraction = 0.4
policy = "choose.star"
`
	p, err := Load(writePlan(t, body))
	require.NoError(t, err, "a plan with a policy script needs no target table")
	assert.True(t, strings.HasSuffix(p.Run.Policy, "choose.star"))
	assert.Empty(t, p.Targets)
}
