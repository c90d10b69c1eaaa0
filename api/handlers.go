package api

import (
	"net/http"
	"strconv"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

type approveRequest struct {
	Spender    string `json:"spender" binding:"required"`
	AssetIndex uint32 `json:"asset_index"`
	Native     string `json:"native"`
	Token      string `json:"token"`
}

type claimBalancesRequest struct {
	Owner      string `json:"owner" binding:"required"`
	AssetIndex uint32 `json:"asset_index"`
	Native     string `json:"native"`
	Token      string `json:"token"`
}

type mintRequest struct {
	Spender    string `json:"spender" binding:"required"`
	AssetIndex uint32 `json:"asset_index"`
}

type claimNftRequest struct {
	Owner      string `json:"owner" binding:"required"`
	AssetIndex uint32 `json:"asset_index"`
}

type registryRequest struct {
	Fungible    string `json:"fungible" binding:"required"`
	NonFungible string `json:"non_fungible" binding:"required"`
}

type minterRequest struct {
	Address string `json:"address" binding:"required"`
}

type allowanceView struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Native  string `json:"native"`
	Token   string `json:"token"`
}

type grantView struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	TokenId string `json:"token_id"`
	Claimed bool   `json:"claimed"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func parseAmounts(native, token string) (*uint256.Int, *uint256.Int, error) {
	n, err := ledger.ParseAmount(native, ledger.NativeBits)
	if err != nil {
		return nil, nil, err
	}
	t, err := ledger.ParseAmount(token, ledger.TokenBits)
	if err != nil {
		return nil, nil, err
	}
	return n, t, nil
}

func (s *Server) approveBalances(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	native, token, err := parseAmounts(req.Native, req.Token)
	if err != nil {
		badRequest(c, err)
		return
	}
	escrowed, approved, err := s.ledger.ApproveBalances(c.Request.Context(), callOf(c), req.Spender, req.AssetIndex, native, token)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"native": escrowed.Dec(), "token": approved.Dec()})
}

func (s *Server) transferBalancesFrom(c *gin.Context) {
	var req claimBalancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	native, token, err := parseAmounts(req.Native, req.Token)
	if err != nil {
		badRequest(c, err)
		return
	}
	err = s.ledger.TransferBalancesFrom(c.Request.Context(), callOf(c), req.Owner, native, token, req.AssetIndex)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) mintApproveNft(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tokenId, err := s.ledger.MintApproveNft(c.Request.Context(), callOf(c), req.AssetIndex, req.Spender)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "token_id": tokenId.Dec()})
}

func (s *Server) transferNftFrom(c *gin.Context) {
	var req claimNftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := s.ledger.TransferNftFrom(c.Request.Context(), callOf(c), req.Owner, req.AssetIndex)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) addContractAddress(c *gin.Context) {
	var req registryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := s.ledger.AddContractAddress(c.Request.Context(), callOf(c), req.Fungible, req.NonFungible)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) addAuthorizedMinter(c *gin.Context) {
	var req minterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := s.ledger.AddAuthorizedMinter(c.Request.Context(), callOf(c), req.Address)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) allowancesForSpender(c *gin.Context) {
	views := []*allowanceView{}
	for _, a := range s.ledger.AllowancesForSpender(callOf(c).Caller) {
		views = append(views, &allowanceView{
			Owner:   a.Owner,
			Spender: a.Spender,
			Native:  a.Native.Dec(),
			Token:   a.Token.Dec(),
		})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) grantsForOwner(c *gin.Context) {
	views := []*grantView{}
	for _, g := range s.ledger.GrantsForOwner(callOf(c).Caller) {
		views = append(views, &grantView{
			Owner:   g.Owner,
			Spender: g.Spender,
			TokenId: g.TokenId.Dec(),
			Claimed: g.Claimed,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) spenderNativeAllowance(c *gin.Context) {
	amount, ok := s.ledger.SpenderNativeAllowance(callOf(c).Caller, c.Param("owner"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ledger.NoExistVaraApprove.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"native": amount.Dec()})
}

func (s *Server) spenderNftAllowance(c *gin.Context) {
	tokenId, ok := s.ledger.SpenderNftAllowance(callOf(c).Caller, c.Param("owner"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ledger.NoExistNFTApprove.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": tokenId.Dec()})
}

func (s *Server) spenderTokenAllowance(c *gin.Context) {
	index, err := strconv.ParseUint(c.DefaultQuery("asset_index", "0"), 10, 32)
	if err != nil {
		badRequest(c, err)
		return
	}
	amount, ok, err := s.ledger.SpenderTokenAllowance(c.Request.Context(), callOf(c).Caller, c.Param("owner"), uint32(index))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ledger.NoExistTokenApprove.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": amount.Dec()})
}

func (s *Server) readRegistry(c *gin.Context) {
	r := s.ledger.Registry()
	c.JSON(http.StatusOK, gin.H{"fungible": r.Fungible, "non_fungible": r.NonFungible})
}

func (s *Server) readRoles(c *gin.Context) {
	r := s.ledger.Roles()
	c.JSON(http.StatusOK, gin.H{"administrators": r.Administrators, "minters": r.Minters})
}

func (s *Server) listEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit out of range"})
		return
	}
	evs, err := s.ledger.Events(callOf(c).Caller, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	views := []gin.H{}
	for _, ev := range evs {
		views = append(views, gin.H{
			"id":         ev.Id,
			"reason":     ev.Reason.String(),
			"operation":  ev.Operation,
			"caller":     ev.Caller,
			"owner":      ev.Owner,
			"spender":    ev.Spender,
			"detail":     ev.Detail,
			"created_at": ev.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}
