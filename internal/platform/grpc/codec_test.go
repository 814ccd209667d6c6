package grpc

import (
	"testing"

	"google.golang.org/grpc/encoding"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestJSONCodecRegistered(t *testing.T) {
	if encoding.GetCodec(CodecName) == nil {
		t.Fatalf("expected codec %q to be registered", CodecName)
	}
}

func TestJSONCodecPlainStruct(t *testing.T) {
	type payload struct {
		CampaignID uint64 `json:"campaign_id"`
		Amount     uint64 `json:"amount"`
	}
	codec := JSONCodec{}
	data, err := codec.Marshal(payload{CampaignID: 3, Amount: 18446744073709551615})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"campaign_id":3,"amount":18446744073709551615}` {
		t.Fatalf("unexpected json %s", data)
	}
	var decoded payload
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Amount != 18446744073709551615 {
		t.Fatalf("amount = %d", decoded.Amount)
	}
}

func TestJSONCodecProtoMessage(t *testing.T) {
	codec := JSONCodec{}
	data, err := codec.Marshal(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded grpc_health_v1.HealthCheckResponse
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s", decoded.GetStatus())
	}
}

func TestJSONCodecUnmarshalError(t *testing.T) {
	var target struct{ A int }
	if err := (JSONCodec{}).Unmarshal([]byte("{"), &target); err == nil {
		t.Fatal("expected error")
	}
}
