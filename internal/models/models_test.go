package models

import "testing"

func TestLookupIgnoresCaseAndAcceptsAliases(t *testing.T) {
	r := Default()
	tests := []struct {
		kind Kind
		in   string
		want string
	}{
		{KindSegmentation, "V3_0", "pyannote/segmentation-3.0"},
		{KindSegmentation, "segmentation-3.0", "pyannote/segmentation-3.0"},
		{KindSegmentation, "Pyannote/Segmentation", "pyannote/segmentation"},
		{KindEmbedding, "ResNet34", "pyannote/wespeaker-voxceleb-resnet34-LM"},
		{KindEmbedding, "wespeaker-voxceleb-resnet34-lm", "pyannote/wespeaker-voxceleb-resnet34-LM"},
		{KindVAD, "MarbleNet", "vad_multilingual_marblenet"},
		{KindSpeaker, "TITANET", "titanet_large"},
		{KindSpeaker, " ecapa ", "ecapa_tdnn"},
		{KindEmbedding, "ecapa", "speechbrain/spkrec-ecapa-voxceleb"},
		{KindMSDD, "telephonic", "diar_infer_telephonic"},
	}
	for _, tc := range tests {
		m, ok := r.Lookup(tc.kind, tc.in)
		if !ok {
			t.Fatalf("Lookup(%s, %q) not found", tc.kind, tc.in)
		}
		if m.Name != tc.want {
			t.Fatalf("Lookup(%s, %q) = %q, want %q", tc.kind, tc.in, m.Name, tc.want)
		}
	}
}

func TestCanonicalKeepsUnknownNames(t *testing.T) {
	r := Default()
	if got := r.Canonical(KindSpeaker, "custom_net"); got != "custom_net" {
		t.Fatalf("Canonical() = %q", got)
	}
	if _, ok := r.Lookup(KindVAD, "titanet"); ok {
		t.Fatal("speaker alias must not resolve as a VAD model")
	}
}

func TestModelsAreDistinctAndSorted(t *testing.T) {
	r := Default()
	list := r.Models(KindSpeaker)
	if len(list) != 4 {
		t.Fatalf("expected 4 speaker models, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name >= list[i].Name {
			t.Fatalf("models not sorted: %v", list)
		}
	}
	if len(r.Kinds()) != 6 {
		t.Fatalf("unexpected kinds %v", r.Kinds())
	}
}
