package accelerator

import "testing"

func TestPresentForceOverride(t *testing.T) {
	t.Setenv(forceEnv, "1")
	if !Present() {
		t.Error("Present() = false, want true with force=1")
	}

	t.Setenv(forceEnv, "0")
	if Present() {
		t.Error("Present() = true, want false with force=0")
	}
}

func TestPresentNvidiaVisibleDevices(t *testing.T) {
	t.Setenv(forceEnv, "")
	t.Setenv("NVIDIA_VISIBLE_DEVICES", "0,1")
	if !Present() {
		t.Error("Present() = false, want true with NVIDIA_VISIBLE_DEVICES set")
	}

	t.Setenv("NVIDIA_VISIBLE_DEVICES", "none")
	if Present() {
		t.Error("Present() = true, want false with NVIDIA_VISIBLE_DEVICES=none")
	}
}
