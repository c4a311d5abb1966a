package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"soulledger/internal/backup/service"
	backupstore "soulledger/internal/backup/store/backup"
	recoverystore "soulledger/internal/backup/store/recovery"
	registryservice "soulledger/internal/registry/service"
	lineagestore "soulledger/internal/registry/store/lineage"
	soulstore "soulledger/internal/registry/store/soul"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/middleware/calleraddr"
	"soulledger/pkg/platform/tx"
)

const (
	ownerAddr    = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	guardianAddr = "0x52908400098527886E0F7030069857D2E4169EE7"
	strangerAddr = "0xde709f2102306220921060314715629080e2fb77"
)

// backupFixture wires the backup handler against the real backup and
// registry services over memory stores.
type backupFixture struct {
	router  http.Handler
	service *service.Service
	reg     *registryservice.Service
	hashes  int
}

func newBackupFixture(t *testing.T) *backupFixture {
	t.Helper()
	runner := tx.NewMemoryRunner()
	registry := registryservice.New(soulstore.NewInMemoryStore(), lineagestore.NewInMemoryStore(),
		registryservice.WithTx(runner))
	svc := service.New(backupstore.NewInMemoryStore(), recoverystore.NewInMemoryStore(), registry,
		service.WithTx(runner))
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	r.Use(calleraddr.CallerAddress(logger))
	h.Register(r)
	return &backupFixture{router: r, service: svc, reg: registry}
}

// mintSoul registers an ALIVE soul owned by the owner and returns its id.
func (f *backupFixture) mintSoul(t *testing.T) id.SoulID {
	t.Helper()
	f.hashes++
	soul, err := f.reg.Mint(context.Background(),
		id.MustAddress(fmt.Sprintf("0x%040x", 100+f.hashes)), id.MustAddress(ownerAddr),
		"ipfs://QmDoc", id.MustContentHash(fmt.Sprintf("0x%064x", f.hashes)))
	if err != nil {
		t.Fatalf("mint fixture soul: %v", err)
	}
	return soul.ID
}

func (f *backupFixture) hash() string {
	f.hashes++
	return fmt.Sprintf("0x%064x", 1000+f.hashes)
}

func doJSON(t *testing.T, router http.Handler, method, path, caller string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(calleraddr.Header, caller)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func (f *backupFixture) createBackup(t *testing.T, soulID id.SoulID, backupType string) BackupResponse {
	t.Helper()
	rec := doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/souls/%d/backups", soulID), ownerAddr,
		map[string]any{"content_uri": "ipfs://QmSnap", "content_hash": f.hash(), "type": backupType})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating backup, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[BackupResponse](t, rec)
}

func TestCreateBackupViaHandler(t *testing.T) {
	f := newBackupFixture(t)
	soulID := f.mintSoul(t)
	path := fmt.Sprintf("/souls/%d/backups", soulID)

	backup := f.createBackup(t, soulID, "MANUAL")
	if backup.Index != 0 || backup.Type != "MANUAL" || !backup.IsValid {
		t.Fatalf("unexpected backup: %+v", backup)
	}

	t.Run("requires a caller", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, path, "",
			map[string]any{"content_uri": "ipfs://QmSnap", "content_hash": f.hash(), "type": "MANUAL"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without caller, got %d", rec.Code)
		}
	})

	t.Run("rejects an unknown type", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, path, ownerAddr,
			map[string]any{"content_uri": "ipfs://QmSnap", "content_hash": f.hash(), "type": "HOURLY"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown type, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("rejects strangers", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, path, strangerAddr,
			map[string]any{"content_uri": "ipfs://QmSnap", "content_hash": f.hash(), "type": "MANUAL"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for stranger, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown soul", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, "/souls/99/backups", ownerAddr,
			map[string]any{"content_uri": "ipfs://QmSnap", "content_hash": f.hash(), "type": "MANUAL"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown soul, got %d", rec.Code)
		}
	})
}

func TestBackupReadsViaHandlers(t *testing.T) {
	f := newBackupFixture(t)
	soulID := f.mintSoul(t)
	f.createBackup(t, soulID, "MANUAL")
	f.createBackup(t, soulID, "CRITICAL")

	t.Run("lists the history", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodGet, fmt.Sprintf("/souls/%d/backups", soulID), "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[BackupsResponse](t, rec)
		if len(resp.Backups) != 2 || resp.Backups[1].Type != "CRITICAL" {
			t.Fatalf("unexpected history: %+v", resp)
		}
	})

	t.Run("valid filter", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodGet, fmt.Sprintf("/souls/%d/backups?valid=true", soulID), "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		resp := decodeBody[BackupsResponse](t, rec)
		if len(resp.Backups) != 2 {
			t.Fatalf("unexpected valid set: %+v", resp)
		}
	})

	t.Run("unknown soul", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodGet, "/souls/99/backups", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown soul, got %d", rec.Code)
		}
	})
}

func TestCrossChainViaHandler(t *testing.T) {
	f := newBackupFixture(t)
	soulID := f.mintSoul(t)
	path := fmt.Sprintf("/souls/%d/backups/crosschain", soulID)

	rec := doJSON(t, f.router, http.MethodPost, path, ownerAddr,
		map[string]any{"target_chain_id": 137, "content_uri": "ipfs://QmSnap", "content_hash": f.hash()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 recording, got %d: %s", rec.Code, rec.Body.String())
	}
	record := decodeBody[CrossChainResponse](t, rec)
	if record.TargetChainID != 137 || record.Index != 0 || record.Recovered {
		t.Fatalf("unexpected record: %+v", record)
	}

	t.Run("rejects a zero chain id", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, path, ownerAddr,
			map[string]any{"target_chain_id": 0, "content_uri": "ipfs://QmSnap", "content_hash": f.hash()})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for zero chain id, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("lists the records", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		resp := decodeBody[CrossChainsResponse](t, rec)
		if len(resp.Records) != 1 {
			t.Fatalf("unexpected records: %+v", resp)
		}
	})
}

func TestRecoveryViaHandlers(t *testing.T) {
	f := newBackupFixture(t)
	soulID := f.mintSoul(t)
	f.createBackup(t, soulID, "MANUAL")

	rec := doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/souls/%d/recovery", soulID), strangerAddr,
		map[string]any{"backup_index": 0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 requesting, got %d: %s", rec.Code, rec.Body.String())
	}
	request := decodeBody[RecoveryResponse](t, rec)
	if request.Approved || request.Executed || request.Requester != strangerAddr {
		t.Fatalf("unexpected request: %+v", request)
	}

	t.Run("only the owner or a guardian approves", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/recovery/%d/approve", request.ID), strangerAddr, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for stranger approval, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("owner approval then execution", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/recovery/%d/approve", request.ID), ownerAddr, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 approving, got %d: %s", rec.Code, rec.Body.String())
		}
		if approved := decodeBody[RecoveryResponse](t, rec); !approved.Approved {
			t.Fatalf("expected owner approval to approve: %+v", approved)
		}

		rec = doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/recovery/%d/execute", request.ID), ownerAddr, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 executing, got %d: %s", rec.Code, rec.Body.String())
		}
		executed := decodeBody[RecoveryResponse](t, rec)
		if !executed.Executed || executed.ExecutedAt == nil {
			t.Fatalf("expected executed request: %+v", executed)
		}
	})

	t.Run("execution is exactly once", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/recovery/%d/execute", request.ID), ownerAddr, nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409 re-executing, got %d", rec.Code)
		}
	})

	t.Run("get reflects the final state", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodGet, fmt.Sprintf("/recovery/%d", request.ID), "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if final := decodeBody[RecoveryResponse](t, rec); !final.Executed {
			t.Fatalf("unexpected state: %+v", final)
		}
	})

	t.Run("emergency recovery is owner-only and one-shot", func(t *testing.T) {
		path := fmt.Sprintf("/souls/%d/recovery/emergency", soulID)
		rec := doJSON(t, f.router, http.MethodPost, path, strangerAddr, map[string]any{"backup_index": 0})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for stranger emergency, got %d", rec.Code)
		}

		rec = doJSON(t, f.router, http.MethodPost, path, ownerAddr, map[string]any{"backup_index": 0})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 for emergency, got %d: %s", rec.Code, rec.Body.String())
		}
		emergency := decodeBody[RecoveryResponse](t, rec)
		if !emergency.Approved || !emergency.Executed {
			t.Fatalf("expected approved and executed: %+v", emergency)
		}
	})
}

func TestGuardiansViaHandlers(t *testing.T) {
	f := newBackupFixture(t)
	soulID := f.mintSoul(t)
	guardiansPath := fmt.Sprintf("/souls/%d/guardians", soulID)

	rec := doJSON(t, f.router, http.MethodPost, guardiansPath, ownerAddr,
		map[string]any{"guardian": guardianAddr})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 adding guardian, got %d: %s", rec.Code, rec.Body.String())
	}
	set := decodeBody[GuardiansResponse](t, rec)
	if len(set.Guardians) != 1 || set.Guardians[0] != guardianAddr {
		t.Fatalf("unexpected set: %+v", set)
	}

	t.Run("owner-only management", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, guardiansPath, strangerAddr,
			map[string]any{"guardian": strangerAddr})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for stranger, got %d", rec.Code)
		}
	})

	t.Run("threshold respects the guardian count", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPut, guardiansPath+"/threshold", ownerAddr,
			map[string]any{"threshold": 2})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for threshold above count, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = doJSON(t, f.router, http.MethodPut, guardiansPath+"/threshold", ownerAddr,
			map[string]any{"threshold": 1})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 setting threshold, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("backupper delegation", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/souls/%d/backuppers", soulID), ownerAddr,
			map[string]any{"address": strangerAddr, "allowed": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 granting backupper, got %d: %s", rec.Code, rec.Body.String())
		}

		backupRec := doJSON(t, f.router, http.MethodPost, fmt.Sprintf("/souls/%d/backups", soulID), strangerAddr,
			map[string]any{"content_uri": "ipfs://QmSnap", "content_hash": f.hash(), "type": "MANUAL"})
		if backupRec.Code != http.StatusCreated {
			t.Fatalf("expected 201 for delegated backup, got %d: %s", backupRec.Code, backupRec.Body.String())
		}
	})

	t.Run("removal via the address segment", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodDelete, guardiansPath+"/"+guardianAddr, ownerAddr, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 removing guardian, got %d: %s", rec.Code, rec.Body.String())
		}
		if set := decodeBody[GuardiansResponse](t, rec); len(set.Guardians) != 0 {
			t.Fatalf("expected empty set: %+v", set)
		}
	})

	t.Run("reads the set", func(t *testing.T) {
		rec := doJSON(t, f.router, http.MethodGet, guardiansPath, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		set := decodeBody[GuardiansResponse](t, rec)
		if len(set.Backuppers) != 1 || set.Backuppers[0] != strangerAddr {
			t.Fatalf("unexpected backuppers: %+v", set)
		}
	})
}
