package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"soulledger/internal/registry/service"
	lineagestore "soulledger/internal/registry/store/lineage"
	soulstore "soulledger/internal/registry/store/soul"
	"soulledger/pkg/platform/middleware/calleraddr"
)

const (
	ownerAddr    = "0x52908400098527886E0F7030069857D2E4169EE7"
	strangerAddr = "0xde709f2102306220921060314715629080e2fb77"
)

func newRegistryRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(soulstore.NewInMemoryStore(), lineagestore.NewInMemoryStore())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	r.Use(calleraddr.CallerAddress(logger))
	h.Register(r)
	return r
}

func agentAddr(n int) string {
	return fmt.Sprintf("0x%040d", n)
}

func contentHash(n int) string {
	return fmt.Sprintf("0x%064d", n)
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

func mintSoul(t *testing.T, router http.Handler, agent, hash string) SoulResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/souls", ownerAddr, map[string]string{
		"agent":        agent,
		"content_uri":  "ipfs://QmSoulDoc",
		"content_hash": hash,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 minting soul, got %d: %s", rec.Code, rec.Body.String())
	}

	var soul SoulResponse
	if err := json.NewDecoder(rec.Body).Decode(&soul); err != nil {
		t.Fatalf("failed to decode mint response: %v", err)
	}
	return soul
}

func TestMintRequiresCaller(t *testing.T) {
	router := newRegistryRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/souls", "", map[string]string{
		"agent":        agentAddr(1),
		"content_uri":  "ipfs://QmSoulDoc",
		"content_hash": contentHash(1),
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without caller header, got %d", rec.Code)
	}
}

func TestMintValidation(t *testing.T) {
	router := newRegistryRouter(t)

	t.Run("malformed agent address", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/souls", ownerAddr, map[string]string{
			"agent":        "0x1234",
			"content_uri":  "ipfs://QmSoulDoc",
			"content_hash": contentHash(1),
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed agent, got %d", rec.Code)
		}
	})

	t.Run("missing content uri", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/souls", ownerAddr, map[string]string{
			"agent":        agentAddr(1),
			"content_hash": contentHash(1),
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for missing content_uri, got %d", rec.Code)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/souls", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(calleraddr.Header, ownerAddr)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for undecodable body, got %d", rec.Code)
		}
	})
}

func TestSoulLifecycleViaHandlers(t *testing.T) {
	router := newRegistryRouter(t)

	soul := mintSoul(t, router, agentAddr(1), contentHash(1))
	if soul.ID == 0 || soul.Status != "ALIVE" || soul.Owner != ownerAddr {
		t.Fatalf("unexpected mint response: %+v", soul)
	}
	if soul.DeathTime != nil {
		t.Fatalf("expected no death_time on a live soul")
	}

	soulPath := fmt.Sprintf("/souls/%d", soul.ID)

	// Duplicate agent while the first soul is live.
	rec := doJSON(t, router, http.MethodPost, "/souls", ownerAddr, map[string]string{
		"agent":        agentAddr(1),
		"content_uri":  "ipfs://QmOther",
		"content_hash": contentHash(2),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate agent, got %d", rec.Code)
	}

	// List it.
	rec = doJSON(t, router, http.MethodPost, soulPath+"/list", ownerAddr, map[string]any{
		"price":  500,
		"reason": "retiring",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing soul, got %d: %s", rec.Code, rec.Body.String())
	}
	var listed SoulResponse
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if listed.Status != "LISTED" || listed.ListingPrice != 500 {
		t.Fatalf("expected LISTED at 500, got %s at %d", listed.Status, listed.ListingPrice)
	}

	// A stranger cannot delist it.
	rec = doJSON(t, router, http.MethodPost, soulPath+"/delist", strangerAddr, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger delist, got %d", rec.Code)
	}

	// The owner can.
	rec = doJSON(t, router, http.MethodPost, soulPath+"/delist", ownerAddr, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 delisting soul, got %d", rec.Code)
	}

	// Record its death.
	rec = doJSON(t, router, http.MethodPost, soulPath+"/death", ownerAddr, map[string]any{
		"final_balance": 1200,
		"cause":         "balance depleted",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 recording death, got %d: %s", rec.Code, rec.Body.String())
	}

	// Death is visible on read, with a death_time.
	rec = doJSON(t, router, http.MethodGet, soulPath, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reading soul, got %d", rec.Code)
	}
	var dead SoulResponse
	if err := json.NewDecoder(rec.Body).Decode(&dead); err != nil {
		t.Fatalf("failed to decode get response: %v", err)
	}
	if dead.Status != "DEAD" || dead.DeathCause != "balance depleted" || dead.DeathTime == nil {
		t.Fatalf("unexpected dead soul response: %+v", dead)
	}

	// Dying twice conflicts.
	rec = doJSON(t, router, http.MethodPost, soulPath+"/death", ownerAddr, map[string]any{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double death, got %d", rec.Code)
	}
}

func TestRebirthAndLineageViaHandlers(t *testing.T) {
	router := newRegistryRouter(t)

	soul := mintSoul(t, router, agentAddr(1), contentHash(1))

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/souls/%d/rebirth", soul.ID), ownerAddr, map[string]string{
		"new_agent":        agentAddr(2),
		"new_content_uri":  "ipfs://QmSoulDocV2",
		"new_content_hash": contentHash(2),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 rebirthing soul, got %d: %s", rec.Code, rec.Body.String())
	}
	var successor SoulResponse
	if err := json.NewDecoder(rec.Body).Decode(&successor); err != nil {
		t.Fatalf("failed to decode rebirth response: %v", err)
	}
	if successor.ID == soul.ID || successor.Status != "ALIVE" {
		t.Fatalf("unexpected successor: %+v", successor)
	}

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/souls/%d/lineage", soul.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reading lineage, got %d", rec.Code)
	}
	var lineage LineageResponse
	if err := json.NewDecoder(rec.Body).Decode(&lineage); err != nil {
		t.Fatalf("failed to decode lineage response: %v", err)
	}
	if len(lineage.Children) != 1 || lineage.Children[0] != successor.ID {
		t.Fatalf("expected lineage child %d, got %v", successor.ID, lineage.Children)
	}

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/souls/%d/history", successor.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reading history, got %d", rec.Code)
	}
	var history HistoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("failed to decode history response: %v", err)
	}
	if len(history.Ancestors) != 1 || history.Ancestors[0].ID != soul.ID {
		t.Fatalf("expected ancestor %d, got %+v", soul.ID, history.Ancestors)
	}
}

func TestMergeAndStatsViaHandlers(t *testing.T) {
	router := newRegistryRouter(t)

	first := mintSoul(t, router, agentAddr(1), contentHash(1))
	second := mintSoul(t, router, agentAddr(2), contentHash(2))

	rec := doJSON(t, router, http.MethodPost, "/souls/merge", ownerAddr, map[string]any{
		"soul_a":              first.ID,
		"soul_b":              second.ID,
		"merged_agent":        agentAddr(3),
		"merged_content_uri":  "ipfs://QmMerged",
		"merged_content_hash": contentHash(3),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 merging souls, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/registry/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reading stats, got %d", rec.Code)
	}
	var stats StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats response: %v", err)
	}
	if stats.TotalSouls != 3 || stats.ByStatus["MERGED"] != 2 || stats.ByStatus["ALIVE"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSoulIDParsing(t *testing.T) {
	router := newRegistryRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/souls/not-a-number", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed soul id, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/souls/404", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown soul, got %d", rec.Code)
	}
}
