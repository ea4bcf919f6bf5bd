package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateNoExpectationsSucceeds(t *testing.T) {
	err := Evaluate(500, "whatever", nil)
	assert.Nil(t, err)
}

func TestEvaluateEquals(t *testing.T) {
	err := Evaluate(200, "", []Expectation{
		{Field: FieldStatusCode, Operation: OpEquals, Value: "200"},
	})
	assert.Nil(t, err)

	err = Evaluate(404, "", []Expectation{
		{Field: FieldStatusCode, Operation: OpEquals, Value: "200"},
	})
	require.NotNil(t, err)
	assert.Equal(t, FieldStatusCode, err.Field)
	assert.Contains(t, err.Error(), "Equals")
	assert.Contains(t, err.Error(), "200")
}

func TestEvaluateNotEquals(t *testing.T) {
	assert.Nil(t, Evaluate(404, "", []Expectation{
		{Field: FieldStatusCode, Operation: OpNotEquals, Value: "200"},
	}))
	assert.NotNil(t, Evaluate(200, "", []Expectation{
		{Field: FieldStatusCode, Operation: OpNotEquals, Value: "200"},
	}))
}

func TestEvaluateContainsAndNotContains(t *testing.T) {
	assert.Nil(t, Evaluate(200, "hello world", []Expectation{
		{Field: FieldBody, Operation: OpContains, Value: "world"},
	}))
	assert.NotNil(t, Evaluate(200, "hello world", []Expectation{
		{Field: FieldBody, Operation: OpContains, Value: "moon"},
	}))
	assert.Nil(t, Evaluate(200, "hello world", []Expectation{
		{Field: FieldBody, Operation: OpNotContains, Value: "moon"},
	}))
}

func TestEvaluateIsOneOf(t *testing.T) {
	assert.Nil(t, Evaluate(200, "", []Expectation{
		{Field: FieldStatusCode, Operation: OpIsOneOf, Value: "200|201|202"},
	}))
	assert.NotNil(t, Evaluate(500, "", []Expectation{
		{Field: FieldStatusCode, Operation: OpIsOneOf, Value: "200|201|202"},
	}))
}

func TestEvaluateMatches(t *testing.T) {
	assert.Nil(t, Evaluate(200, `{"id":123}`, []Expectation{
		{Field: FieldBody, Operation: OpMatches, Value: `"id":\d+`},
	}))
	assert.NotNil(t, Evaluate(200, `{"id":"abc"}`, []Expectation{
		{Field: FieldBody, Operation: OpMatches, Value: `"id":\d+`},
	}))
}

func TestEvaluateMatchesInvalidRegexFails(t *testing.T) {
	err := Evaluate(200, "x", []Expectation{
		{Field: FieldBody, Operation: OpMatches, Value: "(unclosed"},
	})
	assert.NotNil(t, err)
}

func TestEvaluateShortCircuitsOnFirstFailure(t *testing.T) {
	err := Evaluate(200, "body", []Expectation{
		{Field: FieldStatusCode, Operation: OpEquals, Value: "404"},
		{Field: FieldBody, Operation: OpEquals, Value: "never checked"},
	})
	require.NotNil(t, err)
	assert.Equal(t, FieldStatusCode, err.Field)
}

func TestCompileCachedReusesPattern(t *testing.T) {
	re1, err := compileCached(`^abc$`)
	require.NoError(t, err)
	re2, err := compileCached(`^abc$`)
	require.NoError(t, err)
	assert.Same(t, re1, re2)
}
