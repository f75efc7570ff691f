package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	domain "github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/testserver"
	"github.com/ganot/stepwise/internal/transport"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func serverArgs(ts *testserver.TestServer, args ...string) []string {
	return append(args, "--url", ts.Server.URL, "--token", ts.Token, "--tenant", ts.TenantID)
}

func TestStatus(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")

	out, err := execute(t, serverArgs(ts, "status")...)
	require.NoError(t, err)
	require.Contains(t, out, "No saved progress.")

	err = ts.Client().Progress.Save(context.Background(), "tenant1", domain.SaveRequest{
		WizardID:    domain.TaxOnboardingID,
		CurrentStep: 2,
		StepKey:     domain.StepBusinessInfo,
		Draft:       domain.BusinessInfo{Country: "US", StateProvince: "CA", City: "SF"},
	})
	require.NoError(t, err)

	out, err = execute(t, serverArgs(ts, "status")...)
	require.NoError(t, err)
	require.Contains(t, out, "Tax settings: step 2 of 5")
	lines := strings.Split(out, "\n")
	require.Contains(t, lines[1], "Business information")
	require.Contains(t, lines[1], "complete")
	require.Contains(t, lines[2], "not started")
}

func TestQuota(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")

	out, err := execute(t, serverArgs(ts, "quota")...)
	require.NoError(t, err)
	require.Contains(t, out, "Suggestions: 0 of 5 used, 5 left")
}

func TestDefinition(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")

	out, err := execute(t, serverArgs(ts, "definition")...)
	require.NoError(t, err)
	require.Contains(t, out, `"id": "tax-onboarding"`)
}

func TestBadTokenIsReported(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")

	_, err := execute(t, "quota", "--url", ts.Server.URL, "--token", "wrong", "--tenant", "tenant1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid bearer token")
}

func TestToken(t *testing.T) {
	t.Setenv("STEPWISE_JWT_SECRET", "s3cret")

	out, err := execute(t, "token", "--for", "tenant9")
	require.NoError(t, err)

	tenant, err := transport.NewJWTResolver("s3cret", "stepwise").ResolveTenant(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, "tenant9", tenant)
}
