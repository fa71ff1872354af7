// Package memory 提供进程内的存储实现，用于开发环境与测试
package memory

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

type linkKey struct {
	owner, other int64
}

type linkRow struct {
	state models.LinkState
	seq   int64
}

type playerRow struct {
	player   models.Player
	owned    []models.OwnedCharacter
	selected *models.SelectedCharacter
}

type state struct {
	players      map[int64]*playerRow
	byName       map[string]int64
	byEmail      map[string]int64
	instances    map[int64]*models.CharacterInstance
	nextInstance int64
	templates    map[string]models.CharacterTemplate
	chests       map[string]*models.Chest
	links        map[linkKey]linkRow
	linkSeq      int64
	records      []models.BattleRecord
}

func newState() *state {
	return &state{
		players:   make(map[int64]*playerRow),
		byName:    make(map[string]int64),
		byEmail:   make(map[string]int64),
		instances: make(map[int64]*models.CharacterInstance),
		templates: make(map[string]models.CharacterTemplate),
		chests:    make(map[string]*models.Chest),
		links:     make(map[linkKey]linkRow),
	}
}

// clone 深拷贝，用于事务回滚
func (s *state) clone() *state {
	c := newState()
	for id, row := range s.players {
		cp := *row
		cp.player.Achievements = append([]string(nil), row.player.Achievements...)
		cp.owned = append([]models.OwnedCharacter(nil), row.owned...)
		if row.selected != nil {
			sel := *row.selected
			cp.selected = &sel
		}
		c.players[id] = &cp
	}
	for k, v := range s.byName {
		c.byName[k] = v
	}
	for k, v := range s.byEmail {
		c.byEmail[k] = v
	}
	for id, inst := range s.instances {
		cp := *inst
		c.instances[id] = &cp
	}
	c.nextInstance = s.nextInstance
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.chests {
		cp := *v
		cp.Characters = append([]string(nil), v.Characters...)
		c.chests[k] = &cp
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	c.linkSeq = s.linkSeq
	c.records = append([]models.BattleRecord(nil), s.records...)
	return c
}

// Store 内存存储
type Store struct {
	mu   sync.Mutex
	data *state
	rand func(n int) int
	now  func() time.Time
}

// Option 配置项
type Option func(*Store)

// WithRand 指定对手抽样使用的随机函数
func WithRand(fn func(n int) int) Option {
	return func(s *Store) {
		s.rand = fn
	}
}

// New 创建内存存储
func New(opts ...Option) *Store {
	s := &Store{
		data: newState(),
		rand: rand.IntN,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// view 在已持有锁的前提下操作数据
type view struct {
	s *Store
}

var _ storage.Store = (*Store)(nil)

// WithTx 在全局锁下执行，fn 出错时恢复快照
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(view{s: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Close 无需释放资源
func (s *Store) Close() error {
	return nil
}

func (s *Store) locked() (view, func()) {
	s.mu.Lock()
	return view{s: s}, s.mu.Unlock
}

// ===== 玩家 =====

func (v view) CreatePlayer(ctx context.Context, p *models.Player) error {
	d := v.s.data
	if _, ok := d.byName[p.Name]; ok {
		return storage.ErrConflict
	}
	if p.Email != "" {
		if _, ok := d.byEmail[p.Email]; ok {
			return storage.ErrConflict
		}
	}
	var maxID int64
	for id := range d.players {
		if id > maxID {
			maxID = id
		}
	}
	now := v.s.now()
	p.PlayerID = maxID + 1
	p.CreatedAt = now
	p.UpdatedAt = now

	row := &playerRow{player: *p}
	row.player.Collection = models.Collection{}
	row.player.Friends = models.Friends{}
	row.player.Achievements = append([]string(nil), p.Achievements...)
	d.players[p.PlayerID] = row
	d.byName[p.Name] = p.PlayerID
	if p.Email != "" {
		d.byEmail[p.Email] = p.PlayerID
	}
	return nil
}

func (v view) assemble(row *playerRow) *models.Player {
	p := row.player
	p.Achievements = append([]string{}, row.player.Achievements...)
	p.Collection = models.Collection{Owned: append([]models.OwnedCharacter{}, row.owned...)}
	if row.selected != nil {
		sel := *row.selected
		p.Collection.Selected = &sel
	}

	type seqLink struct {
		models.FriendLink
		seq int64
	}
	var links []seqLink
	for k, l := range v.s.data.links {
		if k.owner == p.PlayerID {
			links = append(links, seqLink{models.FriendLink{OwnerID: k.owner, OtherID: k.other, State: l.state}, l.seq})
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].seq < links[j].seq })
	flat := make([]models.FriendLink, len(links))
	for i, l := range links {
		flat[i] = l.FriendLink
	}
	p.Friends = models.FriendsFromLinks(flat)
	return &p
}

func (v view) GetPlayerByID(ctx context.Context, playerID int64) (*models.Player, error) {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v.assemble(row), nil
}

func (v view) GetPlayerByName(ctx context.Context, name string) (*models.Player, error) {
	id, ok := v.s.data.byName[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v.GetPlayerByID(ctx, id)
}

func (v view) GetPlayerByEmail(ctx context.Context, email string) (*models.Player, error) {
	id, ok := v.s.data.byEmail[email]
	if !ok || email == "" {
		return nil, storage.ErrNotFound
	}
	return v.GetPlayerByID(ctx, id)
}

func (v view) LockPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	return v.GetPlayerByID(ctx, playerID)
}

func (v view) UpdatePlayerProfile(ctx context.Context, playerID int64, name, email, gender string) error {
	d := v.s.data
	row, ok := d.players[playerID]
	if !ok {
		return storage.ErrNotFound
	}
	if other, ok := d.byName[name]; ok && other != playerID {
		return storage.ErrConflict
	}
	if other, ok := d.byEmail[email]; ok && email != "" && other != playerID {
		return storage.ErrConflict
	}
	delete(d.byName, row.player.Name)
	delete(d.byEmail, row.player.Email)
	row.player.Name = name
	row.player.Email = email
	row.player.Gender = gender
	row.player.UpdatedAt = v.s.now()
	d.byName[name] = playerID
	if email != "" {
		d.byEmail[email] = playerID
	}
	return nil
}

func (v view) DeletePlayer(ctx context.Context, name string) error {
	d := v.s.data
	id, ok := d.byName[name]
	if !ok {
		return storage.ErrNotFound
	}
	row := d.players[id]
	delete(d.players, id)
	delete(d.byName, name)
	delete(d.byEmail, row.player.Email)
	for instID, inst := range d.instances {
		if inst.OwnerID == id {
			delete(d.instances, instID)
		}
	}
	for k := range d.links {
		if k.owner == id || k.other == id {
			delete(d.links, k)
		}
	}
	return nil
}

func (v view) SampleOpponent(ctx context.Context, excludeID int64) (*models.Player, error) {
	var candidates []int64
	for id, row := range v.s.data.players {
		if id != excludeID && row.player.Role == models.RolePlayer {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, storage.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return v.GetPlayerByID(ctx, candidates[v.s.rand(len(candidates))])
}

func (v view) ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	entries := make([]models.LeaderboardEntry, 0, len(v.s.data.players))
	for _, row := range v.s.data.players {
		if row.player.Role != models.RolePlayer {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			PlayerID: row.player.PlayerID,
			Name:     row.player.Name,
			Gender:   row.player.Gender,
			Points:   row.player.Points,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (v view) SetNotification(ctx context.Context, name, message string) error {
	id, ok := v.s.data.byName[name]
	if !ok {
		return storage.ErrNotFound
	}
	v.s.data.players[id].player.Notification = message
	return nil
}

// ===== 余额 =====

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func (v view) AdjustBalance(ctx context.Context, playerID int64, money, points int64) (models.Balance, error) {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return models.Balance{}, storage.ErrNotFound
	}
	row.player.Money = clamp(row.player.Money + money)
	row.player.Points = clamp(row.player.Points + points)
	return models.Balance{PlayerID: playerID, Money: row.player.Money, Points: row.player.Points}, nil
}

func (v view) DebitIfAffordable(ctx context.Context, playerID int64, amount int64) (models.Balance, bool, error) {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return models.Balance{}, false, storage.ErrNotFound
	}
	bal := models.Balance{PlayerID: playerID, Money: row.player.Money, Points: row.player.Points}
	if row.player.Money < amount {
		return bal, false, nil
	}
	row.player.Money = clamp(row.player.Money - amount)
	bal.Money = row.player.Money
	return bal, true, nil
}

func (v view) UpsertBalanceByName(ctx context.Context, name string, money, points int64) (models.Balance, error) {
	id, ok := v.s.data.byName[name]
	if !ok {
		stub := &models.Player{Name: name, Role: models.RolePlayer}
		if err := v.CreatePlayer(ctx, stub); err != nil {
			return models.Balance{}, err
		}
		id = stub.PlayerID
	}
	return v.AdjustBalance(ctx, id, money, points)
}

func (v view) ClaimStarterPack(ctx context.Context, playerID int64, amount int64) (bool, error) {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return false, storage.ErrNotFound
	}
	if row.player.StarterPackTaken {
		return false, nil
	}
	row.player.StarterPackTaken = true
	row.player.Money = clamp(amount)
	return true, nil
}

// ===== 收藏 =====

func (v view) FindOwned(ctx context.Context, playerID int64, name string) (*models.OwnedCharacter, error) {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for _, o := range row.owned {
		if o.Name == name {
			found := o
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (v view) AppendOwned(ctx context.Context, playerID int64, tmpl models.CharacterTemplate) (*models.CharacterInstance, error) {
	d := v.s.data
	row, ok := d.players[playerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for _, o := range row.owned {
		if o.Name == tmpl.Name {
			return nil, storage.ErrConflict
		}
	}
	d.nextInstance++
	inst := &models.CharacterInstance{
		InstanceID: d.nextInstance,
		OwnerID:    playerID,
		Template:   tmpl.Name,
		Health:     tmpl.Health,
		Attack:     tmpl.Attack,
		Speed:      tmpl.Speed,
		Type:       tmpl.Type,
		CreatedAt:  v.s.now(),
	}
	d.instances[inst.InstanceID] = inst
	row.owned = append(row.owned, models.OwnedCharacter{Name: tmpl.Name, InstanceID: inst.InstanceID})
	out := *inst
	return &out, nil
}

func (v view) PowerUp(ctx context.Context, instanceID int64, boost models.StatBoost) (*models.CharacterInstance, error) {
	inst, ok := v.s.data.instances[instanceID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	inst.Health += boost.Health
	inst.Attack += boost.Attack
	inst.Speed += boost.Speed
	out := *inst
	return &out, nil
}

func (v view) CountOwned(ctx context.Context, playerID int64) (int, error) {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return len(row.owned), nil
}

func (v view) SetSelected(ctx context.Context, playerID int64, sel models.SelectedCharacter) error {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return storage.ErrNotFound
	}
	row.selected = &sel
	return nil
}

func (v view) GetInstance(ctx context.Context, instanceID int64) (*models.CharacterInstance, error) {
	inst, ok := v.s.data.instances[instanceID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *inst
	return &out, nil
}

// ===== 目录 =====

func (v view) CreateTemplate(ctx context.Context, t models.CharacterTemplate) error {
	if _, ok := v.s.data.templates[t.Name]; ok {
		return storage.ErrConflict
	}
	v.s.data.templates[t.Name] = t
	return nil
}

func (v view) UpdateTemplate(ctx context.Context, t models.CharacterTemplate) error {
	if _, ok := v.s.data.templates[t.Name]; !ok {
		return storage.ErrNotFound
	}
	v.s.data.templates[t.Name] = t
	return nil
}

func (v view) GetTemplate(ctx context.Context, name string) (*models.CharacterTemplate, error) {
	t, ok := v.s.data.templates[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (v view) DeleteTemplate(ctx context.Context, name string) error {
	if _, ok := v.s.data.templates[name]; !ok {
		return storage.ErrNotFound
	}
	delete(v.s.data.templates, name)
	return nil
}

func (v view) ListTemplates(ctx context.Context) ([]models.CharacterTemplate, error) {
	out := make([]models.CharacterTemplate, 0, len(v.s.data.templates))
	for _, t := range v.s.data.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v view) CreateChest(ctx context.Context, c models.Chest) error {
	if _, ok := v.s.data.chests[c.Name]; ok {
		return storage.ErrConflict
	}
	cp := c
	cp.Characters = append([]string{}, c.Characters...)
	v.s.data.chests[c.Name] = &cp
	return nil
}

func (v view) GetChest(ctx context.Context, name string) (*models.Chest, error) {
	c, ok := v.s.data.chests[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	cp.Characters = append([]string{}, c.Characters...)
	return &cp, nil
}

func (v view) ListChests(ctx context.Context) ([]models.Chest, error) {
	out := make([]models.Chest, 0, len(v.s.data.chests))
	for _, c := range v.s.data.chests {
		cp := *c
		cp.Characters = append([]string{}, c.Characters...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v view) DeleteChest(ctx context.Context, name string) error {
	if _, ok := v.s.data.chests[name]; !ok {
		return storage.ErrNotFound
	}
	delete(v.s.data.chests, name)
	return nil
}

func (v view) AddChestCharacter(ctx context.Context, chest, character string) error {
	c, ok := v.s.data.chests[chest]
	if !ok {
		return storage.ErrNotFound
	}
	if c.Contains(character) {
		return storage.ErrConflict
	}
	c.Characters = append(c.Characters, character)
	return nil
}

func (v view) RemoveChestCharacter(ctx context.Context, chest, character string) (bool, error) {
	c, ok := v.s.data.chests[chest]
	if !ok {
		return false, storage.ErrNotFound
	}
	for i, n := range c.Characters {
		if n == character {
			c.Characters = append(c.Characters[:i], c.Characters[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ===== 好友 =====

func (v view) GetLink(ctx context.Context, ownerID, otherID int64) (models.LinkState, error) {
	return v.s.data.links[linkKey{ownerID, otherID}].state, nil
}

func (v view) PutLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) error {
	d := v.s.data
	for _, id := range []int64{ownerID, otherID} {
		if _, ok := d.players[id]; !ok {
			return storage.ErrNotFound
		}
	}
	key := linkKey{ownerID, otherID}
	if cur, ok := d.links[key]; ok {
		if cur.state == state {
			return nil
		}
		return storage.ErrConflict
	}
	d.linkSeq++
	d.links[key] = linkRow{state: state, seq: d.linkSeq}
	return nil
}

func (v view) TransitionLink(ctx context.Context, ownerID, otherID int64, from, to models.LinkState) (bool, error) {
	d := v.s.data
	key := linkKey{ownerID, otherID}
	cur, ok := d.links[key]
	if !ok || cur.state != from {
		return false, nil
	}
	d.linkSeq++
	d.links[key] = linkRow{state: to, seq: d.linkSeq}
	return true, nil
}

func (v view) DeleteLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) (bool, error) {
	d := v.s.data
	key := linkKey{ownerID, otherID}
	cur, ok := d.links[key]
	if !ok || cur.state != state {
		return false, nil
	}
	delete(d.links, key)
	return true, nil
}

func (v view) CountLinks(ctx context.Context, ownerID int64, state models.LinkState) (int, error) {
	n := 0
	for k, l := range v.s.data.links {
		if k.owner == ownerID && l.state == state {
			n++
		}
	}
	return n, nil
}

func (v view) ListFriendSummaries(ctx context.Context, ownerID int64) ([]models.FriendSummary, error) {
	row, ok := v.s.data.players[ownerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	p := v.assemble(row)
	out := make([]models.FriendSummary, 0, len(p.Friends.FriendList))
	for _, id := range p.Friends.FriendList {
		friend, ok := v.s.data.players[id]
		if !ok {
			continue
		}
		out = append(out, models.FriendSummary{
			PlayerID: id,
			Name:     friend.player.Name,
			Gender:   friend.player.Gender,
			Points:   friend.player.Points,
		})
	}
	return out, nil
}

// ===== 对战记录 =====

func (v view) AppendBattleRecord(ctx context.Context, rec models.BattleRecord) error {
	v.s.data.records = append(v.s.data.records, rec)
	return nil
}

func (v view) ListBattleRecords(ctx context.Context, name string) ([]models.BattleRecord, error) {
	var out []models.BattleRecord
	for _, r := range v.s.data.records {
		if r.Attacker == name || r.Defender == name {
			out = append(out, r)
		}
	}
	return out, nil
}

func (v view) PurgeBattleRecords(ctx context.Context, attacker string) (int64, error) {
	kept := v.s.data.records[:0]
	var removed int64
	for _, r := range v.s.data.records {
		if r.Attacker == attacker {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	v.s.data.records = kept
	return removed, nil
}

// ===== 成就 =====

func (v view) AddAchievement(ctx context.Context, playerID int64, id string) (bool, error) {
	row, ok := v.s.data.players[playerID]
	if !ok {
		return false, storage.ErrNotFound
	}
	if row.player.HasAchievement(id) {
		return false, nil
	}
	row.player.Achievements = append(row.player.Achievements, id)
	return true, nil
}
