package ingest

import "testing"

func TestSignatureHashesAreDistinct(t *testing.T) {
	sigs := []struct {
		name string
		hash [32]byte
	}{
		{"Transfer", TransferSignature},
		{"TransferSingle", TransferSingleSignature},
		{"TransferBatch", TransferBatchSignature},
	}
	for i := range sigs {
		for j := range sigs {
			if i == j {
				continue
			}
			if sigs[i].hash == sigs[j].hash {
				t.Fatalf("%s and %s hash to the same value", sigs[i].name, sigs[j].name)
			}
		}
	}
}

func TestSignatureHashesAreFixed(t *testing.T) {
	if TransferSignature.Hex() != "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef" {
		t.Fatalf("unexpected Transfer signature: %s", TransferSignature.Hex())
	}
	if TransferSingleSignature.Hex() != "0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62" {
		t.Fatalf("unexpected TransferSingle signature: %s", TransferSingleSignature.Hex())
	}
	if TransferBatchSignature.Hex() != "0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb" {
		t.Fatalf("unexpected TransferBatch signature: %s", TransferBatchSignature.Hex())
	}
}
