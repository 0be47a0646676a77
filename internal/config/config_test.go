package config

import (
	"testing"
)

type memKeystore struct {
	data map[string][]byte
}

func newMemKeystore() *memKeystore {
	return &memKeystore{data: make(map[string][]byte)}
}

func (m *memKeystore) ReadKey(key string) ([]byte, bool) {
	raw, ok := m.data[key]
	return raw, ok
}

func (m *memKeystore) WriteKey(key string, raw []byte) error {
	m.data[key] = raw
	return nil
}

func (m *memKeystore) DeleteKey(key string) error {
	delete(m.data, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("COMANDA_REDIS_ADDR", "")
	t.Setenv("COMANDA_REDIS_PASSWORD", "")
	t.Setenv("COMANDA_REDIS_DB", "")
	t.Setenv("COMANDA_REPORT_API_URL", "")
	t.Setenv("COMANDA_REPORT_API_KEY", "")
}

func TestLoad_ExplicitWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMANDA_REDIS_ADDR", "env:6379")

	cfg := Load(&Config{Addr: "explicit:6379"}, newMemKeystore())
	if cfg.Addr != "explicit:6379" {
		t.Errorf("expected explicit config, got %q", cfg.Addr)
	}
}

func TestLoad_EnvOverSaved(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMANDA_REDIS_ADDR", "env:6379")
	t.Setenv("COMANDA_REDIS_DB", "2")

	ks := newMemKeystore()
	if err := Save(ks, Config{Addr: "saved:6379"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cfg := Load(nil, ks)
	if cfg.Addr != "env:6379" || cfg.DB != 2 {
		t.Errorf("expected env config, got %+v", cfg)
	}
}

func TestLoad_FallsBackToSaved(t *testing.T) {
	clearEnv(t)

	ks := newMemKeystore()
	if err := Save(ks, Config{Addr: "saved:6379", Password: "s3cr3t"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cfg := Load(nil, ks)
	if cfg.Addr != "saved:6379" || cfg.Password != "s3cr3t" {
		t.Errorf("expected saved config, got %+v", cfg)
	}
	if !cfg.HasRemote() {
		t.Error("saved config should count as remote")
	}
}

func TestLoad_NothingUsableMeansLocalMode(t *testing.T) {
	clearEnv(t)

	cfg := Load(nil, newMemKeystore())
	if cfg.HasRemote() {
		t.Errorf("expected local mode, got remote config %+v", cfg)
	}
}

func TestLoad_MalformedSavedConfigIgnored(t *testing.T) {
	clearEnv(t)

	ks := newMemKeystore()
	ks.WriteKey(ConfigKey, []byte("{broken"))

	cfg := Load(nil, ks)
	if cfg.HasRemote() {
		t.Errorf("malformed saved config must not select remote mode, got %+v", cfg)
	}
}

func TestPlaceholderDefaultIsNotRemote(t *testing.T) {
	if defaultConfig.HasRemote() {
		t.Error("placeholder compiled-in default must not count as remote")
	}
}

func TestClear(t *testing.T) {
	ks := newMemKeystore()
	if err := Save(ks, Config{Addr: "saved:6379"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := Clear(ks); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := ks.ReadKey(ConfigKey); ok {
		t.Error("expected config purged")
	}
}
