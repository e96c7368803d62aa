package webhookschema

import "testing"

func TestValidateEventAccepts(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"livemode": false,
		"data": {"object": {"id": "cs_1", "metadata": {"order_id": "5"}}}
	}`)
	if err := ValidateEvent(payload); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateEventRejects(t *testing.T) {
	cases := map[string]string{
		"missing id":      `{"type": "x", "data": {"object": {}}}`,
		"missing data":    `{"id": "evt_1", "type": "x"}`,
		"object not json": `{"id": "evt_1", "type": "x", "data": {"object": "str"}}`,
		"empty type":      `{"id": "evt_1", "type": "", "data": {"object": {}}}`,
		"not json":        `not-json`,
	}
	for name, payload := range cases {
		if err := ValidateEvent([]byte(payload)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
