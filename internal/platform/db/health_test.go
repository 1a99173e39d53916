package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_Serialization(t *testing.T) {
	stats := &PoolStats{
		TotalConns:    5,
		IdleConns:     3,
		AcquiredConns: 2,
		MaxConns:      20,
		Healthy:       true,
	}

	b, err := json.Marshal(stats)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "healthy"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing json field %q", key)
		}
	}
	if decoded["healthy"] != true {
		t.Error("healthy flag not serialized")
	}
}
