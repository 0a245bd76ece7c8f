package plaid

import (
	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/Veraticus/spiceflow/internal/model"
)

func mapSyncResponse(resp plaid.TransactionsSyncResponse) *model.SyncPage {
	page := &model.SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}

	for _, t := range resp.GetAdded() {
		page.Added = append(page.Added, mapTransaction(t))
	}
	for _, t := range resp.GetModified() {
		page.Modified = append(page.Modified, mapTransaction(t))
	}
	for _, r := range resp.GetRemoved() {
		if id := r.GetTransactionId(); id != "" {
			page.Removed = append(page.Removed, id)
		}
	}
	for _, a := range resp.GetAccounts() {
		page.Accounts = append(page.Accounts, mapAccount(a))
	}

	return page
}

func mapTransaction(pt plaid.Transaction) model.ProviderTransaction {
	txn := model.ProviderTransaction{
		ExternalID:           pt.GetTransactionId(),
		AccountExternalID:    pt.GetAccountId(),
		Date:                 pt.GetDate(),
		AuthorizedDate:       pt.GetAuthorizedDate(),
		Name:                 pt.GetName(),
		Amount:               pt.GetAmount(),
		Pending:              pt.GetPending(),
		CurrencyCode:         optional(pt.GetIsoCurrencyCode()),
		MerchantName:         optional(pt.GetMerchantName()),
		OriginalDescription:  optional(pt.GetOriginalDescription()),
		PendingTransactionID: optional(pt.GetPendingTransactionId()),
	}

	if pt.HasPersonalFinanceCategory() {
		pfc := pt.GetPersonalFinanceCategory()
		txn.CategoryPrimary = optional(pfc.GetPrimary())
		txn.CategoryDetailed = optional(pfc.GetDetailed())
	}

	return txn
}

func mapAccount(a plaid.AccountBase) model.ProviderAccount {
	return model.ProviderAccount{
		ExternalID:   a.GetAccountId(),
		Name:         a.GetName(),
		Type:         string(a.GetType()),
		OfficialName: optional(a.GetOfficialName()),
		Subtype:      optional(string(a.GetSubtype())),
		Mask:         optional(a.GetMask()),
	}
}

// optional maps the SDK's empty-string-for-null convention to a nil pointer.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
