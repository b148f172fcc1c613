package router

import (
	"net/http"

	"github.com/senyabanana/escrow-service/internal/handlers"
)

func InitRoutes(projectHandler *handlers.ProjectHandler, bidHandler *handlers.BidHandler, escrowHandler *handlers.EscrowHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	mux.HandleFunc("POST /api/projects/new", projectHandler.CreateProject)
	mux.HandleFunc("GET /api/projects/{projectId}", projectHandler.GetProject)
	mux.HandleFunc("GET /api/projects/{projectId}/bids/list", projectHandler.GetProjectBids)

	mux.HandleFunc("POST /api/projects/{projectId}/bids/new", bidHandler.SubmitBid)
	mux.HandleFunc("PUT /api/projects/{projectId}/bids/{bidId}/accept", bidHandler.AcceptBid)
	mux.HandleFunc("PUT /api/projects/{projectId}/bids/{bidId}/reject", bidHandler.RejectBid)

	mux.HandleFunc("POST /api/projects/{projectId}/escrow/fund", escrowHandler.FundEscrow)
	mux.HandleFunc("PUT /api/projects/{projectId}/progress", escrowHandler.UpdateProgress)
	mux.HandleFunc("POST /api/projects/{projectId}/approve", escrowHandler.ApproveCompletion)
	mux.HandleFunc("POST /api/escrow/{ledgerId}/release", escrowHandler.ReleasePayment)
	mux.HandleFunc("POST /api/escrow/reconcile", escrowHandler.Reconcile)
	mux.HandleFunc("GET /api/escrow/project/{projectId}", escrowHandler.GetLedger)

	return mux
}
