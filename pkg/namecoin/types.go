package namecoin

// NameInfo is the name_show view of a registered name.
type NameInfo struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	TxID      string `json:"txid"`
	Address   string `json:"address"`
	Height    int64  `json:"height"`
	ExpiresIn int64  `json:"expires_in"`
	Expired   bool   `json:"expired"`
}

// AddressInfo is the validateaddress view of a wallet address.
type AddressInfo struct {
	IsValid bool   `json:"isvalid"`
	Address string `json:"address"`
	IsMine  bool   `json:"ismine"`
}

// walletInfo is the subset of getwalletinfo the client cares about.
// UnlockedUntil is absent on unencrypted wallets, 0 while locked and a unix
// timestamp while temporarily unlocked.
type walletInfo struct {
	UnlockedUntil *int64 `json:"unlocked_until"`
}

// txInfo is the subset of gettransaction used for confirmation sampling.
type txInfo struct {
	Confirmations int64 `json:"confirmations"`
}
