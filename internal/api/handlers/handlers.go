package handlers

import (
	"errors"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dnovriandi/receipt-audit/internal/api/middleware"
	"github.com/dnovriandi/receipt-audit/internal/domain"
	"github.com/dnovriandi/receipt-audit/internal/pipeline"
	"github.com/dnovriandi/receipt-audit/internal/store"
)

// maxUploadBytes bounds how much of a multipart upload is held in memory.
const maxUploadBytes = 32 << 20

// ReceiptsHandler handles receipt upload and read endpoints.
type ReceiptsHandler struct {
	store        *store.Store
	pipe         *pipeline.Pipeline
	gatewayBase  string
	explorerBase string
	log          zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler. gatewayBase and
// explorerBase are the public URL prefixes for pinned files and ledger
// transactions.
func NewReceiptsHandler(st *store.Store, pipe *pipeline.Pipeline, gatewayBase, explorerBase string, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		store:        st,
		pipe:         pipe,
		gatewayBase:  gatewayBase,
		explorerBase: explorerBase,
		log:          log,
	}
}

// Upload handles POST /api/receipts/upload. The client always receives either
// a complete success payload or a single error object.
func (h *ReceiptsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file unreadable")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "file required")
		return
	}

	result, err := h.pipe.Ingest(ctx, pipeline.UploadInput{
		FileName:       header.Filename,
		MimeType:       header.Header.Get("Content-Type"),
		Data:           data,
		AuditorAddress: r.FormValue("auditorAddress"),
	})
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Upload pipeline failed")
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal Server Error",
			"details": err.Error(),
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"receiptId":   result.Receipt.ID,
			"txHash":      result.Anchor.TxHash,
			"ipfsCid":     result.CID,
			"explorerUrl": h.explorerURL(result.Anchor.TxHash),
			"extracted":   formatExtracted(result.Fields),
			"dbRecord":    h.formatDetail(result.Receipt),
		},
	})
}

// List handles GET /api/receipts.
func (h *ReceiptsHandler) List(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.store.ListReceipts(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to fetch")
		return
	}

	formatted := make([]map[string]interface{}, 0, len(receipts))
	for _, rec := range receipts {
		formatted = append(formatted, h.formatListEntry(rec))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    formatted,
	})
}

// Detail handles GET /api/receipts/{id}.
func (h *ReceiptsHandler) Detail(w http.ResponseWriter, r *http.Request, receiptID string) {
	receipt, err := h.store.GetReceipt(r.Context(), receiptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Receipt not found")
			return
		}
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to fetch receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    h.formatDetail(receipt),
	})
}

func (h *ReceiptsHandler) gatewayURL(cid string) interface{} {
	if cid == "" || cid == pipeline.PinFailedCID {
		return nil
	}
	return h.gatewayBase + "/" + cid
}

func (h *ReceiptsHandler) explorerURL(txHash string) string {
	return h.explorerBase + "/tx/" + txHash
}

func (h *ReceiptsHandler) formatListEntry(r *domain.Receipt) map[string]interface{} {
	entry := map[string]interface{}{
		"id":         r.ID,
		"vendor":     r.VendorName,
		"date":       r.ReceiptDate.Format("2006-01-02"),
		"total":      r.TotalAmount,
		"status":     r.Status,
		"category":   categoryName(r),
		"itemsCount": len(r.Items),
		"ipfs":       map[string]interface{}{"cid": nil, "url": nil},
		"blockchain": map[string]interface{}{"txHash": nil, "explorerUrl": nil},
	}
	if r.StorageRecord != nil {
		entry["ipfs"] = map[string]interface{}{
			"cid": r.StorageRecord.CID,
			"url": h.gatewayURL(r.StorageRecord.CID),
		}
	}
	if r.LedgerRecord != nil {
		entry["blockchain"] = map[string]interface{}{
			"txHash":      r.LedgerRecord.TxHash,
			"explorerUrl": h.explorerURL(r.LedgerRecord.TxHash),
		}
	}
	return entry
}

func (h *ReceiptsHandler) formatDetail(r *domain.Receipt) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, map[string]interface{}{
			"id":          it.ID,
			"description": it.Description,
			"qty":         it.Quantity,
			"price":       it.UnitPrice,
			"total":       it.LineTotal,
		})
	}

	detail := map[string]interface{}{
		"id":        r.ID,
		"vendor":    r.VendorName,
		"date":      r.ReceiptDate.Format("2006-01-02"),
		"total":     r.TotalAmount,
		"subtotal":  r.Subtotal,
		"tax":       r.TaxAmount,
		"status":    r.Status,
		"category":  categoryName(r),
		"auditor":   auditorLabel(r),
		"items":     items,
		"createdAt": r.CreatedAt.Format(time.RFC3339),
	}

	ipfs := map[string]interface{}{"cid": nil, "url": nil, "fileHash": nil}
	if r.StorageRecord != nil {
		ipfs = map[string]interface{}{
			"cid":      r.StorageRecord.CID,
			"url":      h.gatewayURL(r.StorageRecord.CID),
			"fileHash": r.StorageRecord.FileHash,
			// Wide integers cross the JSON boundary as decimal strings.
			"byteSize": strconv.FormatInt(r.StorageRecord.ByteSize, 10),
			"mimeType": r.StorageRecord.MimeType,
		}
	}
	detail["ipfs"] = ipfs

	blockchain := map[string]interface{}{"txHash": nil, "block": "Pending", "explorerUrl": nil}
	if r.LedgerRecord != nil {
		block := "Pending"
		if r.LedgerRecord.BlockNumber != nil {
			block = strconv.FormatInt(*r.LedgerRecord.BlockNumber, 10)
		}
		blockchain = map[string]interface{}{
			"txHash":      r.LedgerRecord.TxHash,
			"network":     r.LedgerRecord.Network,
			"block":       block,
			"explorerUrl": h.explorerURL(r.LedgerRecord.TxHash),
		}
	}
	detail["blockchain"] = blockchain

	return detail
}

func formatExtracted(f *pipeline.ReceiptFields) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, map[string]interface{}{
			"itemName": it.ItemName,
			"qty":      it.Qty,
			"price":    it.Price,
			"total":    it.Total,
		})
	}
	return map[string]interface{}{
		"vendorName": f.VendorName,
		"amount":     f.Amount,
		"date":       f.Date.Format("2006-01-02"),
		"category":   f.Category,
		"items":      items,
	}
}

func categoryName(r *domain.Receipt) string {
	if r.Category != nil {
		return r.Category.Name
	}
	return "Uncategorized"
}

func auditorLabel(r *domain.Receipt) string {
	if r.Actor == nil {
		return "Unknown"
	}
	if r.Actor.Name != "" {
		return r.Actor.Name
	}
	return r.Actor.WalletAddress
}

// StatsHandler serves the dashboard aggregation endpoint.
type StatsHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(st *store.Store, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{store: st, log: log}
}

var monthsOrder = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Stats handles GET /api/stats: a single pass over receipt summaries.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListReceiptSummaries(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load receipt summaries")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	totalVerifiedSpend := decimal.Zero
	var verifiedCount, pendingCount, failedCount int

	categoryTotals := map[string]decimal.Decimal{}
	monthlyTotals := map[string]decimal.Decimal{}

	for _, s := range summaries {
		switch s.Status {
		case domain.StatusVerified:
			totalVerifiedSpend = totalVerifiedSpend.Add(s.TotalAmount)
			verifiedCount++
		case domain.StatusPending:
			pendingCount++
		case domain.StatusFailed:
			failedCount++
		}

		catName := s.CategoryName
		if catName == "" {
			catName = "Uncategorized"
		}
		categoryTotals[catName] = categoryTotals[catName].Add(s.TotalAmount)

		month := s.ReceiptDate.Format("Jan")
		monthlyTotals[month] = monthlyTotals[month].Add(s.TotalAmount)
	}

	totalReceipts := len(summaries)
	complianceRate := 0.0
	if totalReceipts > 0 {
		complianceRate = math.Round(float64(verifiedCount)/float64(totalReceipts)*1000) / 10
	}

	spendingByCategory := make([]map[string]interface{}, 0, len(categoryTotals))
	for name, value := range categoryTotals {
		spendingByCategory = append(spendingByCategory, map[string]interface{}{
			"name":  name,
			"value": value,
		})
	}
	sort.Slice(spendingByCategory, func(i, j int) bool {
		a := spendingByCategory[i]["value"].(decimal.Decimal)
		b := spendingByCategory[j]["value"].(decimal.Decimal)
		return a.GreaterThan(b)
	})

	monthlyTrend := make([]map[string]interface{}, 0, len(monthlyTotals))
	for _, month := range monthsOrder {
		if amount, ok := monthlyTotals[month]; ok {
			monthlyTrend = append(monthlyTrend, map[string]interface{}{
				"name":   month,
				"amount": amount,
			})
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"summary": map[string]interface{}{
				"totalVerifiedSpend": totalVerifiedSpend,
				"totalReceipts":      totalReceipts,
				"verifiedCount":      verifiedCount,
				"pendingCount":       pendingCount,
				"failedCount":        failedCount,
				"complianceRate":     complianceRate,
			},
			"charts": map[string]interface{}{
				"spendingByCategory": spendingByCategory,
				"monthlyTrend":       monthlyTrend,
			},
		},
	})
}
