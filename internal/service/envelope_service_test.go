package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/auditexport"
	"signet/internal/domain"
	"signet/internal/email"
	"signet/internal/port"
	"signet/internal/service"
)

func TestEnvelope_SingleSigner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com")

	invites := h.notifier.Sent()
	require.Len(t, invites, 1)
	assert.Equal(t, domain.TemplateSignRequest, invites[0].Template)
	assert.Equal(t, tokens["bob@example.com"], invites[0].Params[email.ParamToken])
	assert.Equal(t, "Olivia Owner", invites[0].Params[email.ParamSenderName])

	require.NoError(t, h.signing.RecordView(ctx, tokens["bob@example.com"], "203.0.113.7", "test-agent"))
	req := h.sign(t, tokens["bob@example.com"])

	assert.Equal(t, domain.SignRequestStatusSigned, req.Status)
	assert.Equal(t, "203.0.113.7", req.SignerIP)
	final := h.document(t, doc.ID)
	assert.Equal(t, domain.DocumentStatusCompleted, final.Status)
	assert.NotNil(t, final.CompletedAt)
	assert.Contains(t, h.workingCopy(t, doc.ID), "%signed "+req.ID.String())

	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest, domain.TemplateDocumentCompleted},
		h.notifier.SentTo("bob@example.com"))
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateDocumentCompleted},
		h.notifier.SentTo("owner@example.com"))
	assert.Equal(t, []domain.AuditEvent{
		domain.AuditDocumentCreated, domain.AuditSentForSignature, domain.AuditLinkOpened, domain.AuditSigned,
	}, h.store.AuditEvents(doc.ID))
}

func TestEnvelope_CompletePrefetchesFontsBeforeEmbedding(t *testing.T) {
	h := newHarness(t)
	_, tokens := h.sentDocument(t, false, "bob@example.com")

	req := h.sign(t, tokens["bob@example.com"])

	assert.Equal(t, []string{
		"prefetch typed::bob::Dancing Script::XX::14",
		"embed " + req.ID.String(),
	}, h.renderer.log())
}

func TestEnvelope_SigningOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, true, "alice@example.com", "carol@example.com")

	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest}, h.notifier.SentTo("alice@example.com"))
	assert.Empty(t, h.notifier.SentTo("carol@example.com"))

	info, err := h.signing.GetInfo(ctx, tokens["carol@example.com"])
	require.NoError(t, err)
	assert.False(t, info.CanSign)
	info, err = h.signing.GetInfo(ctx, tokens["alice@example.com"])
	require.NoError(t, err)
	assert.True(t, info.CanSign)

	alice := h.sign(t, tokens["alice@example.com"])
	assert.Equal(t, domain.DocumentStatusPending, h.document(t, doc.ID).Status)
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest, domain.TemplateWaitingForOthers},
		h.notifier.SentTo("alice@example.com"))
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest}, h.notifier.SentTo("carol@example.com"))

	info, err = h.signing.GetInfo(ctx, tokens["carol@example.com"])
	require.NoError(t, err)
	assert.True(t, info.CanSign)
	require.NotNil(t, info.Request.ExpiresAt)
	assert.Equal(t, h.clock.Now().Add(linkTTL), *info.Request.ExpiresAt)

	carol := h.sign(t, tokens["carol@example.com"])
	assert.Equal(t, domain.DocumentStatusCompleted, h.document(t, doc.ID).Status)

	working := h.workingCopy(t, doc.ID)
	assert.Contains(t, working, "%signed "+alice.ID.String())
	assert.Contains(t, working, "%signed "+carol.ID.String())
	assert.Less(t, strings.Index(working, alice.ID.String()), strings.Index(working, carol.ID.String()))
	assert.Equal(t, 3, h.notifier.Count(domain.TemplateDocumentCompleted))
}

func TestEnvelope_SigningOrderRejectsLaterRecipient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, true, "alice@example.com", "carol@example.com")
	carol := tokens["carol@example.com"]
	fid := "sig-carol"

	_, err := h.signing.SaveSignature(ctx, carol, &fid, "typed::Carol::::::")
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)
	_, err = h.env.Complete(ctx, carol, "", "")
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	// A signature already on the record still does not let her finish first.
	stored, err := h.store.SignRequests().GetByToken(ctx, carol)
	require.NoError(t, err)
	require.NoError(t, h.store.SignRequests().SaveSignature(ctx, stored.ID, &fid, "typed::Carol::::::"))
	_, err = h.env.Complete(ctx, carol, "", "")
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	stored, err = h.store.SignRequests().GetByToken(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, domain.SignRequestStatusPending, stored.Status)
	assert.Nil(t, stored.SignedAt)
	assert.Equal(t, domain.DocumentStatusPending, h.document(t, doc.ID).Status)
	assert.Zero(t, h.renderer.embedCount())
	assert.NotContains(t, h.workingCopy(t, doc.ID), "%signed")

	h.sign(t, tokens["alice@example.com"])
	h.sign(t, carol)
	assert.Equal(t, domain.DocumentStatusCompleted, h.document(t, doc.ID).Status)
}

func TestEnvelope_SigningOrderGatesFieldValues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.createDocument(t, true)
	later := recipient("carol@example.com", 2)
	later.Fields = append(later.Fields, textField("company", domain.TextFormat{}))
	_, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{recipient("alice@example.com", 1), later})
	require.NoError(t, err)
	_, err = h.env.Send(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	tokens := h.tokens(t, doc.ID)

	_, err = h.signing.SaveFieldValue(ctx, tokens["carol@example.com"], "company", "Acme")
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	h.sign(t, tokens["alice@example.com"])
	req, err := h.signing.SaveFieldValue(ctx, tokens["carol@example.com"], "company", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", req.FieldValues["company"])
}

func TestEnvelope_ParallelGroupWaitsForWholeGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.createDocument(t, true)
	_, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{
		recipient("a@example.com", 1),
		recipient("b@example.com", 1),
		recipient("c@example.com", 2),
	})
	require.NoError(t, err)
	_, err = h.env.Send(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	tokens := h.tokens(t, doc.ID)

	assert.Equal(t, 2, h.notifier.Count(domain.TemplateSignRequest))
	h.sign(t, tokens["a@example.com"])
	assert.Empty(t, h.notifier.SentTo("c@example.com"))
	h.sign(t, tokens["b@example.com"])
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest}, h.notifier.SentTo("c@example.com"))
}

func TestEnvelope_ConcurrentGroupCompletionInvitesNextOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.createDocument(t, true)
	_, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{
		recipient("a@example.com", 1),
		recipient("b@example.com", 1),
		recipient("c@example.com", 2),
	})
	require.NoError(t, err)
	_, err = h.env.Send(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	tokens := h.tokens(t, doc.ID)
	for _, name := range []string{"a", "b"} {
		fid := "sig-" + name
		_, err := h.signing.SaveSignature(ctx, tokens[name+"@example.com"], &fid, "typed::"+name+"::::::")
		require.NoError(t, err)
	}

	// Hold each signer's waiting notice until both have signed, so both
	// finalizers see the whole first group done and race to advance.
	var signed sync.WaitGroup
	signed.Add(2)
	h.notifier.BeforeSend = func(msg port.Notification) {
		if msg.Template == domain.TemplateWaitingForOthers {
			signed.Done()
			signed.Wait()
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, addr := range []string{"a@example.com", "b@example.com"} {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			_, err := h.env.Complete(ctx, token, "", "")
			errs <- err
		}(tokens[addr])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 2, h.notifier.Count(domain.TemplateWaitingForOthers))
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest}, h.notifier.SentTo("c@example.com"))
	info, err := h.signing.GetInfo(ctx, tokens["c@example.com"])
	require.NoError(t, err)
	assert.True(t, info.CanSign)
	require.NotNil(t, info.Request.SentAt)
}

func TestEnvelope_CompletionCounts(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("%d signers", n), func(t *testing.T) {
			h := newHarness(t)
			addrs := emails(n)
			doc, tokens := h.sentDocument(t, false, addrs...)

			for i, addr := range addrs {
				h.sign(t, tokens[addr])
				status := h.document(t, doc.ID).Status
				if i < n-1 {
					assert.Equal(t, domain.DocumentStatusPending, status, "after %d of %d", i+1, n)
					assert.Zero(t, h.notifier.Count(domain.TemplateDocumentCompleted))
				} else {
					assert.Equal(t, domain.DocumentStatusCompleted, status)
				}
			}
			assert.Equal(t, n-1, h.notifier.Count(domain.TemplateWaitingForOthers))
			assert.Equal(t, n+1, h.notifier.Count(domain.TemplateDocumentCompleted))
			assert.Equal(t, n, h.renderer.embedCount())
		})
	}
}

func TestEnvelope_ConcurrentCompletionsNotifyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	addrs := emails(3)
	doc, tokens := h.sentDocument(t, false, addrs...)

	for _, addr := range addrs {
		id := "sig-" + strings.SplitN(addr, "@", 2)[0]
		_, err := h.signing.SaveSignature(ctx, tokens[addr], &id, "typed::Signer::::::")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(addrs)*2)
	for _, addr := range addrs {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(token string) {
				defer wg.Done()
				_, err := h.env.Complete(ctx, token, "", "")
				errs <- err
			}(tokens[addr])
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, domain.DocumentStatusCompleted, h.document(t, doc.ID).Status)
	assert.Equal(t, 3, h.renderer.embedCount())
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateDocumentCompleted}, h.notifier.SentTo("owner@example.com"))
	working := h.workingCopy(t, doc.ID)
	assert.Equal(t, 3, strings.Count(working, "%signed "))
}

func TestEnvelope_CompleteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com", "dan@example.com")
	first := h.sign(t, tokens["bob@example.com"])
	sent := len(h.notifier.Sent())
	key := h.document(t, doc.ID).WorkingFileKey()

	again, err := h.env.Complete(ctx, tokens["bob@example.com"], "198.51.100.1", "other")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "203.0.113.7", again.SignerIP)
	assert.Equal(t, 1, h.renderer.embedCount())
	assert.Len(t, h.notifier.Sent(), sent)
	assert.Equal(t, key, h.document(t, doc.ID).WorkingFileKey())

	// Mutations on a signed request are no-ops.
	fid := "sig-bob"
	unchanged, err := h.signing.SaveSignature(ctx, tokens["bob@example.com"], &fid, "typed::Someone Else::::::")
	require.NoError(t, err)
	assert.Equal(t, domain.SignRequestStatusSigned, unchanged.Status)
	stored, err := h.store.SignRequests().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Signatures["sig-bob"], "Someone Else")

	_, _, err = h.signing.Decline(ctx, tokens["bob@example.com"], "", "", "changed my mind")
	assert.ErrorIs(t, err, domain.ErrAlreadySigned)
}

func TestEnvelope_ExpiredLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, tokens := h.sentDocument(t, false, "bob@example.com")
	token := tokens["bob@example.com"]
	keys := h.files.Keys()

	h.clock.Advance(linkTTL + time.Minute)

	_, err := h.signing.GetInfo(ctx, token)
	assert.ErrorIs(t, err, domain.ErrLinkExpired)
	assert.ErrorIs(t, h.signing.RecordView(ctx, token, "", ""), domain.ErrLinkExpired)
	_, err = h.signing.FileURL(ctx, token)
	assert.ErrorIs(t, err, domain.ErrLinkExpired)
	fid := "sig-bob"
	_, err = h.signing.SaveSignature(ctx, token, &fid, "typed::Bob::::::")
	assert.ErrorIs(t, err, domain.ErrLinkExpired)
	_, err = h.env.Complete(ctx, token, "", "")
	assert.ErrorIs(t, err, domain.ErrLinkExpired)
	_, err = h.env.Decline(ctx, token, "", "", "")
	assert.ErrorIs(t, err, domain.ErrLinkExpired)

	assert.Equal(t, keys, h.files.Keys())
	assert.Zero(t, h.renderer.embedCount())
	stored, err := h.store.SignRequests().GetByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.SignRequestStatusPending, stored.Status)
	assert.Empty(t, stored.Signatures)
	assert.Nil(t, stored.DeclinedAt)
}

func TestEnvelope_ResendExtendsExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com")
	h.clock.Advance(linkTTL + time.Hour)

	reqs, err := h.store.SignRequests().ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	_, err = h.env.Resend(ctx, h.owner, doc.ID, []service.RecipientCorrection{
		{SignRequestID: reqs[0].ID, Email: "Robert@Example.com", Name: "Robert"},
	})
	require.NoError(t, err)

	info, err := h.signing.GetInfo(ctx, tokens["bob@example.com"])
	require.NoError(t, err)
	assert.Equal(t, "robert@example.com", info.Request.RecipientEmail)
	assert.Equal(t, "Robert", info.Request.RecipientName)
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest}, h.notifier.SentTo("robert@example.com"))
}

func TestEnvelope_DeclineVoidsDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com", "dan@example.com")

	declined, err := h.env.Decline(ctx, tokens["bob@example.com"], "203.0.113.9", "ua", "  terms changed  ")
	require.NoError(t, err)
	assert.Equal(t, domain.SignRequestStatusDeclined, declined.Status)
	assert.Equal(t, "terms changed", declined.DeclineReason)

	voided := h.document(t, doc.ID)
	assert.Equal(t, domain.DocumentStatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedFileKey)
	stamped, err := h.files.Download(ctx, testBucket, *voided.VoidedFileKey)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(stamped, []byte("%VOID")))

	owner := h.notifier.Sent()
	last := owner[len(owner)-1]
	assert.Equal(t, domain.TemplateDocumentDeclined, last.Template)
	assert.Equal(t, "owner@example.com", last.To.Email)
	assert.Equal(t, "terms changed", last.Params[email.ParamReason])

	// The other recipient can no longer complete, and stays pending.
	fid := "sig-dan"
	_, err = h.signing.SaveSignature(ctx, tokens["dan@example.com"], &fid, "typed::Dan::::::")
	require.NoError(t, err)
	_, err = h.env.Complete(ctx, tokens["dan@example.com"], "", "")
	assert.ErrorIs(t, err, domain.ErrDocumentNotSignable)
	info, err := h.signing.GetInfo(ctx, tokens["dan@example.com"])
	require.NoError(t, err)
	assert.Equal(t, domain.SignRequestStatusPending, info.Request.Status)
	assert.False(t, info.CanSign)
	assert.Zero(t, h.renderer.embedCount())

	// Declining twice returns the record unchanged.
	again, err := h.env.Decline(ctx, tokens["bob@example.com"], "", "", "other")
	require.NoError(t, err)
	assert.Equal(t, "terms changed", again.DeclineReason)

	url, err := h.env.DownloadURL(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, url, "/voided/")
	assert.Contains(t, url, "filename=Master_Services_Agreement_voided.pdf")

	_, err = h.signing.SaveSignature(ctx, tokens["bob@example.com"], nil, "typed::Bob::::::")
	assert.ErrorIs(t, err, domain.ErrSignRequestDeclined)
}

func TestEnvelope_DeclineRetriesFailedVoid(t *testing.T) {
	docs := &failingVoids{n: 1}
	h := newHarnessWithDocs(t, func(r port.DocumentRepository) port.DocumentRepository {
		docs.DocumentRepository = r
		return docs
	})
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com", "dan@example.com")

	_, err := h.env.Decline(ctx, tokens["bob@example.com"], "", "", "wrong counterparty")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.DocumentStatusPending, h.document(t, doc.ID).Status)
	assert.Empty(t, h.notifier.SentTo("owner@example.com"))

	again, err := h.env.Decline(ctx, tokens["bob@example.com"], "", "", "ignored")
	require.NoError(t, err)
	assert.Equal(t, domain.SignRequestStatusDeclined, again.Status)
	assert.Equal(t, "wrong counterparty", again.DeclineReason)

	voided := h.document(t, doc.ID)
	assert.Equal(t, domain.DocumentStatusVoided, voided.Status)
	assert.NotNil(t, voided.VoidedFileKey)
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateDocumentDeclined}, h.notifier.SentTo("owner@example.com"))

	_, err = h.env.Decline(ctx, tokens["bob@example.com"], "", "", "")
	require.NoError(t, err)
	assert.Len(t, h.notifier.SentTo("owner@example.com"), 1)
}

func TestEnvelope_CompleteRequiresSignatures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com")

	_, err := h.env.Complete(ctx, tokens["bob@example.com"], "", "")
	var unsigned *domain.FieldsUnsignedError
	require.True(t, errors.As(err, &unsigned))
	assert.ErrorIs(t, err, domain.ErrFieldsUnsigned)
	assert.Equal(t, "sig-bob", unsigned.FieldID)
	assert.Equal(t, "bob@example.com", unsigned.RecipientEmail)
	assert.Equal(t, domain.DocumentStatusPending, h.document(t, doc.ID).Status)

	// A legacy single payload satisfies every signature field.
	_, err = h.signing.SaveSignature(ctx, tokens["bob@example.com"], nil, "typed::Bob::::::")
	require.NoError(t, err)
	_, err = h.env.Complete(ctx, tokens["bob@example.com"], "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, h.document(t, doc.ID).Status)
}

func TestEnvelope_EmbedFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com")
	fid := "sig-bob"
	_, err := h.signing.SaveSignature(ctx, tokens["bob@example.com"], &fid, "typed::Bob::::::")
	require.NoError(t, err)

	h.renderer.failEmbed = errBoom
	_, err = h.env.Complete(ctx, tokens["bob@example.com"], "", "")
	assert.ErrorIs(t, err, errBoom)

	final := h.document(t, doc.ID)
	assert.Equal(t, domain.DocumentStatusPending, final.Status)
	assert.Nil(t, final.SignedFileKey)
	info, err := h.signing.GetInfo(ctx, tokens["bob@example.com"])
	require.NoError(t, err)
	assert.Equal(t, domain.SignRequestStatusPending, info.Request.Status)

	h.renderer.failEmbed = nil
	h.sign(t, tokens["bob@example.com"])
	assert.Equal(t, domain.DocumentStatusCompleted, h.document(t, doc.ID).Status)
}

func TestEnvelope_SendDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.createDocument(t, false)
	_, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{
		recipient("good@example.com", 1),
		recipient("bounce@example.com", 1),
	})
	require.NoError(t, err)
	h.notifier.Bounce["bounce@example.com"] = true

	_, err = h.env.Send(ctx, h.owner, doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	var de *domain.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.DeliveryBounce, de.Kind)
	assert.Equal(t, "bounce@example.com", de.Recipient)

	reqs, err := h.store.SignRequests().ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	for _, r := range reqs {
		if r.RecipientEmail == "good@example.com" {
			assert.NotNil(t, r.SentAt)
		} else {
			assert.Nil(t, r.SentAt)
		}
	}
}

func TestEnvelope_OwnerAsSignerIsNotEmailed(t *testing.T) {
	h := newHarness(t)
	doc, tokens := h.sentDocument(t, false, "owner@example.com", "bob@example.com")

	assert.Empty(t, h.notifier.SentTo("owner@example.com"))
	info, err := h.signing.GetInfo(context.Background(), tokens["owner@example.com"])
	require.NoError(t, err)
	require.NotNil(t, info.Request.ExpiresAt)

	h.sign(t, tokens["owner@example.com"])
	h.sign(t, tokens["bob@example.com"])
	assert.Equal(t, domain.DocumentStatusCompleted, h.document(t, doc.ID).Status)
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateDocumentCompleted}, h.notifier.SentTo("owner@example.com"))
}

func TestEnvelope_AddRecipientsValidatesPlacement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.createDocument(t, false)

	offPage := recipient("bob@example.com", 1)
	offPage.Fields[0].Page = 3
	_, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{offPage})
	assert.ErrorIs(t, err, domain.ErrFieldOutOfPage)

	outside := recipient("bob@example.com", 1)
	outside.Fields[0].XPct, outside.Fields[0].YPct = pct(150), pct(150)
	_, err = h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{outside})
	assert.ErrorIs(t, err, domain.ErrFieldOutOfPage)

	_, err = h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{recipient("not-an-email", 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	_, err = h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{
		recipient("bob@example.com", 1), recipient("BOB@example.com", 2),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateRecipient)

	_, err = h.env.AddRecipients(ctx, uuidOwner(), doc.ID, []service.RecipientInput{recipient("bob@example.com", 1)})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestEnvelope_AddRecipientToPendingDocumentNotifies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, _ := h.sentDocument(t, false, "bob@example.com")

	created, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{recipient("erin@example.com", 1)})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].ExpiresAt)
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest}, h.notifier.SentTo("erin@example.com"))
	assert.Equal(t, []domain.NotificationTemplate{domain.TemplateSignRequest}, h.notifier.SentTo("bob@example.com"))
}

func TestSignRequest_SaveFieldValue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.createDocument(t, false)
	in := recipient("bob@example.com", 1)
	in.Fields = append(in.Fields,
		textField("company", domain.TextFormat{MaxChars: 10}),
		textField("fixed", domain.TextFormat{ReadOnly: true, DefaultValue: "ACME"}),
		dropdownField("plan", "basic", "pro"),
	)
	_, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{in})
	require.NoError(t, err)
	_, err = h.env.Send(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	token := h.tokens(t, doc.ID)["bob@example.com"]

	req, err := h.signing.SaveFieldValue(ctx, token, "company", "  Globex  ")
	require.NoError(t, err)
	assert.Equal(t, "Globex", req.FieldValues["company"])

	_, err = h.signing.SaveFieldValue(ctx, token, "company", "Globex Corporation")
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
	_, err = h.signing.SaveFieldValue(ctx, token, "fixed", "Other")
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
	_, err = h.signing.SaveFieldValue(ctx, token, "plan", "enterprise")
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
	_, err = h.signing.SaveFieldValue(ctx, token, "missing", "x")
	assert.ErrorIs(t, err, domain.ErrFieldNotFound)
	_, err = h.signing.SaveFieldValue(ctx, token, "sig-bob", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidField)

	req, err = h.signing.SaveFieldValue(ctx, token, "plan", "pro")
	require.NoError(t, err)
	assert.Equal(t, "pro", req.FieldValues["plan"])

	company := "company"
	_, err = h.signing.SaveSignature(ctx, token, &company, "typed::Bob::::::")
	assert.ErrorIs(t, err, domain.ErrInvalidField)
	_, err = h.signing.SaveSignature(ctx, token, nil, "data:image/png;base64,@@@")
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
	_, err = h.signing.SaveSignature(ctx, token, nil, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
}

func TestEnvelope_OwnerLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.createDocument(t, false)

	_, err := h.env.Send(ctx, h.owner, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNoRecipients)

	created, err := h.env.AddRecipients(ctx, h.owner, doc.ID, []service.RecipientInput{recipient("bob@example.com", 1)})
	require.NoError(t, err)
	assert.Nil(t, created[0].ExpiresAt)

	moved := recipient("bob@example.com", 1).Fields
	moved[0].YPct = pct(10)
	updated, err := h.env.UpdateFields(ctx, h.owner, doc.ID, created[0].ID, moved)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *updated.Fields[0].YPct)

	detail, err := h.env.Get(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	assert.Len(t, detail.SignRequests, 1)

	require.NoError(t, h.env.Delete(ctx, h.owner, doc.ID))
	docs, total, err := h.env.List(ctx, h.owner, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
	assert.ErrorIs(t, h.env.Delete(ctx, h.owner, doc.ID), domain.ErrInvalidTransition)

	restored, err := h.env.Restore(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusDraft, restored.Status)

	cancelled, err := h.env.Cancel(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCancelled, cancelled.Status)
	_, err = h.env.Send(ctx, h.owner, doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.env.Cancel(ctx, h.owner, doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.env.UpdateFields(ctx, h.owner, doc.ID, created[0].ID, moved)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestEnvelope_CreateDocumentValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.env.CreateDocument(ctx, service.CreateDocumentInput{
		Owner: h.owner, File: strings.NewReader("GIF89a"), Size: 6,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPDF)

	_, err = h.env.CreateDocument(ctx, service.CreateDocumentInput{
		Owner: h.owner, File: bytes.NewReader(make([]byte, 2<<20)), Size: 2 << 20,
	})
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	doc, err := h.env.CreateDocument(ctx, service.CreateDocumentInput{
		Owner: h.owner, FileName: "lease-2025.pdf", File: strings.NewReader("%PDF-1.4\n"), Size: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, "lease-2025", doc.Title)
	assert.Equal(t, domain.DocumentStatusDraft, doc.Status)
	assert.Equal(t, 800.0, doc.RenderWidth)
	assert.Contains(t, h.files.Keys(), testBucket+"/"+doc.OriginalFileKey)
	meta := h.files.Metadata(testBucket, doc.OriginalFileKey)
	assert.Equal(t, "original", meta["artifact"])
	assert.Equal(t, doc.ID.String(), meta["document-id"])
}

func TestEnvelope_AuditTrailAndExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, tokens := h.sentDocument(t, false, "bob@example.com")
	h.sign(t, tokens["bob@example.com"])

	entries, total, err := h.env.AuditTrail(ctx, h.owner, doc.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, entries, 2)

	file, err := h.env.ExportAudit(ctx, h.owner, doc.ID, auditexport.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Master_Services_Agreement_audit_2025-06-01.csv", file.Name)
	assert.Contains(t, string(file.Data), "bob@example.com")

	_, _, err = h.env.AuditTrail(ctx, uuidOwner(), doc.ID, 0, 10)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func uuidOwner() domain.Owner {
	return domain.Owner{ID: uuid.New(), Email: "intruder@example.com"}
}
