package maintenance

import (
	"context"
	"time"

	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
)

type fakeStore struct {
	journalReport storage.JournalReport
	journalErr    error
	summary       storage.OutboxSummary
	summaryErr    error
	requeued      int
	requeueErr    error
	requeueLimit  int
	requeueNow    time.Time
	auditEvents   []storage.AuditEvent
	auditErr      error
	auditCampaign uint64
	auditLimit    int
	campaign      domain.Campaign
	campaignErr   error
	entries       map[string]uint64
	entriesErr    error
	events        []storage.JournalEvent
	eventsErr     error
	eventPages    int
	closeErr      error
	closed        bool
}

func (f *fakeStore) VerifyJournal(context.Context) (storage.JournalReport, error) {
	return f.journalReport, f.journalErr
}

func (f *fakeStore) GetOutboxSummary(context.Context) (storage.OutboxSummary, error) {
	return f.summary, f.summaryErr
}

func (f *fakeStore) RequeueDeadOutbox(_ context.Context, limit int, now time.Time) (int, error) {
	f.requeueLimit = limit
	f.requeueNow = now
	return f.requeued, f.requeueErr
}

func (f *fakeStore) ListAuditEvents(_ context.Context, campaignID uint64, limit int) ([]storage.AuditEvent, error) {
	f.auditCampaign = campaignID
	f.auditLimit = limit
	return f.auditEvents, f.auditErr
}

func (f *fakeStore) GetCampaign(context.Context, uint64) (domain.Campaign, error) {
	return f.campaign, f.campaignErr
}

func (f *fakeStore) ListContributions(context.Context, uint64) (map[string]uint64, error) {
	return f.entries, f.entriesErr
}

func (f *fakeStore) ListEvents(_ context.Context, campaignID uint64, afterSeq uint64, limit int) ([]storage.JournalEvent, error) {
	f.eventPages++
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	var page []storage.JournalEvent
	for _, evt := range f.events {
		if evt.Seq <= afterSeq || evt.Event.CampaignID != campaignID {
			continue
		}
		page = append(page, evt)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return f.closeErr
}
