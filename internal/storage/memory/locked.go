package memory

import (
	"context"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
)

// 以下方法在互斥锁内委托给 view

func (s *Store) CreatePlayer(ctx context.Context, p *models.Player) error {
	v, unlock := s.locked()
	defer unlock()
	return v.CreatePlayer(ctx, p)
}

func (s *Store) GetPlayerByID(ctx context.Context, playerID int64) (*models.Player, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.GetPlayerByID(ctx, playerID)
}

func (s *Store) GetPlayerByName(ctx context.Context, name string) (*models.Player, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.GetPlayerByName(ctx, name)
}

func (s *Store) GetPlayerByEmail(ctx context.Context, email string) (*models.Player, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.GetPlayerByEmail(ctx, email)
}

func (s *Store) LockPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.LockPlayer(ctx, playerID)
}

func (s *Store) UpdatePlayerProfile(ctx context.Context, playerID int64, name, email, gender string) error {
	v, unlock := s.locked()
	defer unlock()
	return v.UpdatePlayerProfile(ctx, playerID, name, email, gender)
}

func (s *Store) DeletePlayer(ctx context.Context, name string) error {
	v, unlock := s.locked()
	defer unlock()
	return v.DeletePlayer(ctx, name)
}

func (s *Store) SampleOpponent(ctx context.Context, excludeID int64) (*models.Player, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.SampleOpponent(ctx, excludeID)
}

func (s *Store) ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.ListLeaderboard(ctx, limit)
}

func (s *Store) SetNotification(ctx context.Context, name, message string) error {
	v, unlock := s.locked()
	defer unlock()
	return v.SetNotification(ctx, name, message)
}

func (s *Store) AdjustBalance(ctx context.Context, playerID int64, money, points int64) (models.Balance, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.AdjustBalance(ctx, playerID, money, points)
}

func (s *Store) DebitIfAffordable(ctx context.Context, playerID int64, amount int64) (models.Balance, bool, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.DebitIfAffordable(ctx, playerID, amount)
}

func (s *Store) UpsertBalanceByName(ctx context.Context, name string, money, points int64) (models.Balance, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.UpsertBalanceByName(ctx, name, money, points)
}

func (s *Store) ClaimStarterPack(ctx context.Context, playerID int64, amount int64) (bool, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.ClaimStarterPack(ctx, playerID, amount)
}

func (s *Store) FindOwned(ctx context.Context, playerID int64, name string) (*models.OwnedCharacter, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.FindOwned(ctx, playerID, name)
}

func (s *Store) AppendOwned(ctx context.Context, playerID int64, tmpl models.CharacterTemplate) (*models.CharacterInstance, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.AppendOwned(ctx, playerID, tmpl)
}

func (s *Store) PowerUp(ctx context.Context, instanceID int64, boost models.StatBoost) (*models.CharacterInstance, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.PowerUp(ctx, instanceID, boost)
}

func (s *Store) CountOwned(ctx context.Context, playerID int64) (int, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.CountOwned(ctx, playerID)
}

func (s *Store) SetSelected(ctx context.Context, playerID int64, sel models.SelectedCharacter) error {
	v, unlock := s.locked()
	defer unlock()
	return v.SetSelected(ctx, playerID, sel)
}

func (s *Store) GetInstance(ctx context.Context, instanceID int64) (*models.CharacterInstance, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.GetInstance(ctx, instanceID)
}

func (s *Store) CreateTemplate(ctx context.Context, t models.CharacterTemplate) error {
	v, unlock := s.locked()
	defer unlock()
	return v.CreateTemplate(ctx, t)
}

func (s *Store) UpdateTemplate(ctx context.Context, t models.CharacterTemplate) error {
	v, unlock := s.locked()
	defer unlock()
	return v.UpdateTemplate(ctx, t)
}

func (s *Store) GetTemplate(ctx context.Context, name string) (*models.CharacterTemplate, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.GetTemplate(ctx, name)
}

func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	v, unlock := s.locked()
	defer unlock()
	return v.DeleteTemplate(ctx, name)
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.CharacterTemplate, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.ListTemplates(ctx)
}

func (s *Store) CreateChest(ctx context.Context, c models.Chest) error {
	v, unlock := s.locked()
	defer unlock()
	return v.CreateChest(ctx, c)
}

func (s *Store) GetChest(ctx context.Context, name string) (*models.Chest, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.GetChest(ctx, name)
}

func (s *Store) ListChests(ctx context.Context) ([]models.Chest, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.ListChests(ctx)
}

func (s *Store) DeleteChest(ctx context.Context, name string) error {
	v, unlock := s.locked()
	defer unlock()
	return v.DeleteChest(ctx, name)
}

func (s *Store) AddChestCharacter(ctx context.Context, chest, character string) error {
	v, unlock := s.locked()
	defer unlock()
	return v.AddChestCharacter(ctx, chest, character)
}

func (s *Store) RemoveChestCharacter(ctx context.Context, chest, character string) (bool, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.RemoveChestCharacter(ctx, chest, character)
}

func (s *Store) GetLink(ctx context.Context, ownerID, otherID int64) (models.LinkState, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.GetLink(ctx, ownerID, otherID)
}

func (s *Store) PutLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) error {
	v, unlock := s.locked()
	defer unlock()
	return v.PutLink(ctx, ownerID, otherID, state)
}

func (s *Store) TransitionLink(ctx context.Context, ownerID, otherID int64, from, to models.LinkState) (bool, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.TransitionLink(ctx, ownerID, otherID, from, to)
}

func (s *Store) DeleteLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) (bool, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.DeleteLink(ctx, ownerID, otherID, state)
}

func (s *Store) CountLinks(ctx context.Context, ownerID int64, state models.LinkState) (int, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.CountLinks(ctx, ownerID, state)
}

func (s *Store) ListFriendSummaries(ctx context.Context, ownerID int64) ([]models.FriendSummary, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.ListFriendSummaries(ctx, ownerID)
}

func (s *Store) AppendBattleRecord(ctx context.Context, rec models.BattleRecord) error {
	v, unlock := s.locked()
	defer unlock()
	return v.AppendBattleRecord(ctx, rec)
}

func (s *Store) ListBattleRecords(ctx context.Context, name string) ([]models.BattleRecord, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.ListBattleRecords(ctx, name)
}

func (s *Store) PurgeBattleRecords(ctx context.Context, attacker string) (int64, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.PurgeBattleRecords(ctx, attacker)
}

func (s *Store) AddAchievement(ctx context.Context, playerID int64, id string) (bool, error) {
	v, unlock := s.locked()
	defer unlock()
	return v.AddAchievement(ctx, playerID, id)
}
