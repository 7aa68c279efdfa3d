//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/internal/artifact"
	"credit-risk/internal/common/camunda"
	"credit-risk/internal/common/config"
	"credit-risk/internal/common/logger"
	"credit-risk/pkg/registry"

	scr "credit-risk/internal/workers/risk/score-credit-risk"
)

const processID = "credit-scoring-e2e"

// One service task; scoring BPMN errors end the instance through an error end event.
const processBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
  xmlns:zeebe="http://camunda.org/schema/zeebe/1.0"
  id="Definitions_credit" targetNamespace="http://bpmn.io/schema/bpmn">
  <bpmn:process id="credit-scoring-e2e" isExecutable="true">
    <bpmn:startEvent id="start"><bpmn:outgoing>f1</bpmn:outgoing></bpmn:startEvent>
    <bpmn:serviceTask id="score" name="Score credit risk">
      <bpmn:extensionElements>
        <zeebe:taskDefinition type="score-credit-risk" retries="3" />
      </bpmn:extensionElements>
      <bpmn:incoming>f1</bpmn:incoming><bpmn:outgoing>f2</bpmn:outgoing>
    </bpmn:serviceTask>
    <bpmn:boundaryEvent id="rejected" attachedToRef="score">
      <bpmn:outgoing>f3</bpmn:outgoing>
      <bpmn:errorEventDefinition />
    </bpmn:boundaryEvent>
    <bpmn:endEvent id="scored"><bpmn:incoming>f2</bpmn:incoming></bpmn:endEvent>
    <bpmn:endEvent id="manualReview"><bpmn:incoming>f3</bpmn:incoming></bpmn:endEvent>
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="score" />
    <bpmn:sequenceFlow id="f2" sourceRef="score" targetRef="scored" />
    <bpmn:sequenceFlow id="f3" sourceRef="rejected" targetRef="manualReview" />
  </bpmn:process>
</bpmn:definitions>`

var zeebeClient zbc.Client

func TestMain(m *testing.M) {
	address := os.Getenv("ZEEBE_ADDRESS")
	if address == "" {
		address = "localhost:26500"
	}

	client, err := camunda.NewClientWithConfig(context.Background(), &camunda.ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect to Zeebe at %s: %v", address, err))
	}
	zeebeClient = client.GetClient()

	code := m.Run()

	client.Close()
	os.Exit(code)
}

func createTestHandler(t *testing.T) *scr.Handler {
	t.Helper()

	bundle, err := artifact.Load(filepath.Join("..", "..", "models"), "", artifact.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { bundle.Close() })

	reg, err := registry.LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	activity, err := reg.FindByTaskType(scr.TaskType)
	require.NoError(t, err)

	handler, err := scr.NewHandler(&scr.Config{
		Timeout:     5 * time.Second,
		InputSchema: activity.InputSchema,
	}, scr.Dependencies{Scorer: bundle.Pipeline}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return handler
}

func deployProcess(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := zeebeClient.NewDeployResourceCommand().
		AddResource([]byte(processBPMN), processID+".bpmn").
		Send(ctx)
	require.NoError(t, err)
}

func runInstance(t *testing.T, ctx context.Context, variables map[string]interface{}) map[string]interface{} {
	t.Helper()
	cmd, err := zeebeClient.NewCreateInstanceCommand().
		BPMNProcessId(processID).
		LatestVersion().
		VariablesFromMap(variables)
	require.NoError(t, err)

	resp, err := cmd.WithResult().Send(ctx)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.GetVariables()), &out))
	return out
}

func createTestApplicant() map[string]interface{} {
	return map[string]interface{}{
		"age":                    28,
		"income":                 1200000,
		"loanAmount":             2560000,
		"loanTenureMonths":       36,
		"avgDaysPastDue":         20,
		"delinquencyRatio":       30,
		"creditUtilizationRatio": 30,
		"numOpenAccounts":        2,
		"residenceType":          "Owned",
		"loanPurpose":            "Personal",
		"loanType":               "Unsecured",
	}
}

func TestScoreCreditRiskE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deployProcess(t, ctx)

	w := camunda.StartWorker(zeebeClient, scr.TaskType, config.WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       10000,
	}, createTestHandler(t), logger.NewTestLogger(t))
	require.NotNil(t, w)
	defer w.Stop()

	t.Run("reference applicant", func(t *testing.T) {
		out := runInstance(t, ctx, map[string]interface{}{
			"applicationId": "E2E-1",
			"applicant":     createTestApplicant(),
		})
		assert.Equal(t, float64(534), out["creditScore"])
		assert.Equal(t, "Average", out["rating"])
		assert.Equal(t, "v1", out["modelVersion"])
		assert.InDelta(t, 0.6102, out["probability"], 0.001)
	})

	t.Run("invalid category ends in manual review", func(t *testing.T) {
		applicant := createTestApplicant()
		applicant["loanPurpose"] = "Boat"

		out := runInstance(t, ctx, map[string]interface{}{
			"applicationId": "E2E-2",
			"applicant":     applicant,
		})
		assert.Equal(t, "INVALID_CATEGORY", out["errorCode"])
		assert.NotContains(t, out, "creditScore")
	})
}

func BenchmarkPipeline_Score(b *testing.B) {
	bundle, err := artifact.Load(filepath.Join("..", "..", "models"), "", artifact.Options{})
	if err != nil {
		b.Fatal(err)
	}
	defer bundle.Close()

	applicant := createTestApplicant()
	data, _ := json.Marshal(applicant)
	var in scr.Input
	if err := json.Unmarshal(data, &in.Applicant); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bundle.Pipeline.Score(in.Applicant); err != nil {
			b.Fatal(err)
		}
	}
}
