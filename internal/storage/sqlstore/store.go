// Package sqlstore 基于 database/sql 的存储实现，支持 PostgreSQL 与 SQLite
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn 在连接或事务上执行语句
type conn struct {
	q querier
	d dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rewrite(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rewrite(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rewrite(query), args...)
}

// Store SQL存储
type Store struct {
	conn
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New 使用已打开的连接创建存储，driver 取值 postgres 或 sqlite
func New(sqlDB *sql.DB, driver string) *Store {
	d := dialect{driver: driver}
	return &Store{
		conn:  conn{q: sqlDB, d: d},
		sqlDB: sqlDB,
	}
}

// WithTx 在单个数据库事务中执行 fn
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if err := fn(conn{q: tx, d: s.d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Close 关闭连接
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c conn) playerExists(ctx context.Context, playerID int64) (bool, error) {
	var one int
	err := c.queryRow(ctx, `SELECT 1 FROM players WHERE player_id = $1`, playerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ===== 玩家 =====

const playerColumns = `player_id, name, COALESCE(email, ''), password_hash, gender, role,
	money, points, starter_pack_taken, notification, selected_name, selected_instance_id,
	created_at, updated_at`

func (c conn) CreatePlayer(ctx context.Context, p *models.Player) error {
	var taken int
	err := c.queryRow(ctx,
		`SELECT COUNT(*) FROM players WHERE name = $1 OR (email IS NOT NULL AND email = $2)`,
		p.Name, nullString(p.Email)).Scan(&taken)
	if err != nil {
		return fmt.Errorf("检查玩家唯一性失败: %w", err)
	}
	if taken > 0 {
		return storage.ErrConflict
	}

	now := time.Now()
	role := p.Role
	if role == "" {
		role = models.RolePlayer
	}
	err = c.queryRow(ctx,
		`INSERT INTO players (player_id, name, email, password_hash, gender, role,
			money, points, starter_pack_taken, notification, created_at, updated_at)
		 VALUES ((SELECT COALESCE(MAX(player_id), 0) + 1 FROM players),
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 RETURNING player_id`,
		p.Name, nullString(p.Email), p.PasswordHash, p.Gender, string(role),
		p.Money, p.Points, p.StarterPackTaken, p.Notification, toMillis(now),
	).Scan(&p.PlayerID)
	if isUniqueViolation(err) {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("创建玩家失败: %w", err)
	}
	p.Role = role
	p.CreatedAt = fromMillis(toMillis(now))
	p.UpdatedAt = p.CreatedAt

	for _, a := range p.Achievements {
		if _, err := c.AddAchievement(ctx, p.PlayerID, a); err != nil {
			return err
		}
	}
	return nil
}

func (c conn) scanPlayer(row *sql.Row) (*models.Player, error) {
	var (
		p            models.Player
		role         string
		selName      sql.NullString
		selID        sql.NullInt64
		created, upd int64
	)
	err := row.Scan(&p.PlayerID, &p.Name, &p.Email, &p.PasswordHash, &p.Gender, &role,
		&p.Money, &p.Points, &p.StarterPackTaken, &p.Notification, &selName, &selID,
		&created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取玩家失败: %w", err)
	}
	p.Role = models.Role(role)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(upd)
	if selName.Valid && selID.Valid {
		p.Collection.Selected = &models.SelectedCharacter{Name: selName.String, InstanceID: selID.Int64}
	}
	return &p, nil
}

// loadRelations 读取收藏、好友与成就，每个查询读完后才发起下一个
func (c conn) loadRelations(ctx context.Context, p *models.Player) error {
	rows, err := c.query(ctx,
		`SELECT id, template_name FROM character_instances WHERE owner_id = $1 ORDER BY id`, p.PlayerID)
	if err != nil {
		return fmt.Errorf("读取收藏失败: %w", err)
	}
	p.Collection.Owned = []models.OwnedCharacter{}
	for rows.Next() {
		var o models.OwnedCharacter
		if err := rows.Scan(&o.InstanceID, &o.Name); err != nil {
			rows.Close()
			return err
		}
		p.Collection.Owned = append(p.Collection.Owned, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = c.query(ctx,
		`SELECT other_id, state FROM friend_links WHERE owner_id = $1 ORDER BY seq`, p.PlayerID)
	if err != nil {
		return fmt.Errorf("读取好友失败: %w", err)
	}
	var links []models.FriendLink
	for rows.Next() {
		var (
			l     models.FriendLink
			state string
		)
		if err := rows.Scan(&l.OtherID, &state); err != nil {
			rows.Close()
			return err
		}
		l.OwnerID = p.PlayerID
		l.State = models.LinkState(state)
		links = append(links, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	p.Friends = models.FriendsFromLinks(links)

	rows, err = c.query(ctx,
		`SELECT achievement FROM achievements WHERE player_id = $1 ORDER BY granted_at, achievement`, p.PlayerID)
	if err != nil {
		return fmt.Errorf("读取成就失败: %w", err)
	}
	defer rows.Close()
	p.Achievements = []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return err
		}
		p.Achievements = append(p.Achievements, a)
	}
	return rows.Err()
}

func (c conn) getPlayer(ctx context.Context, where string, arg any) (*models.Player, error) {
	p, err := c.scanPlayer(c.queryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	if err := c.loadRelations(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c conn) GetPlayerByID(ctx context.Context, playerID int64) (*models.Player, error) {
	return c.getPlayer(ctx, `player_id = $1`, playerID)
}

func (c conn) GetPlayerByName(ctx context.Context, name string) (*models.Player, error) {
	return c.getPlayer(ctx, `name = $1`, name)
}

func (c conn) GetPlayerByEmail(ctx context.Context, email string) (*models.Player, error) {
	if email == "" {
		return nil, storage.ErrNotFound
	}
	return c.getPlayer(ctx, `email = $1`, email)
}

func (c conn) LockPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	return c.getPlayer(ctx, `player_id = $1 FOR UPDATE`, playerID)
}

func (c conn) UpdatePlayerProfile(ctx context.Context, playerID int64, name, email, gender string) error {
	var taken int
	err := c.queryRow(ctx,
		`SELECT COUNT(*) FROM players
		 WHERE player_id <> $1 AND (name = $2 OR (email IS NOT NULL AND email = $3))`,
		playerID, name, nullString(email)).Scan(&taken)
	if err != nil {
		return fmt.Errorf("检查玩家唯一性失败: %w", err)
	}
	if taken > 0 {
		return storage.ErrConflict
	}

	res, err := c.exec(ctx,
		`UPDATE players SET name = $2, email = $3, gender = $4, updated_at = $5 WHERE player_id = $1`,
		playerID, name, nullString(email), gender, toMillis(time.Now()))
	if isUniqueViolation(err) {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("更新玩家资料失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (c conn) DeletePlayer(ctx context.Context, name string) error {
	res, err := c.exec(ctx, `DELETE FROM players WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("删除玩家失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (c conn) SampleOpponent(ctx context.Context, excludeID int64) (*models.Player, error) {
	var id int64
	err := c.queryRow(ctx,
		`SELECT player_id FROM players WHERE role = $1 AND player_id <> $2 ORDER BY random() LIMIT 1`,
		string(models.RolePlayer), excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("抽取对手失败: %w", err)
	}
	return c.GetPlayerByID(ctx, id)
}

func (c conn) ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `SELECT player_id, name, gender, points FROM players
		WHERE role = $1 ORDER BY points DESC, player_id ASC`
	args := []any{string(models.RolePlayer)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询排行榜失败: %w", err)
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.Gender, &e.Points); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c conn) SetNotification(ctx context.Context, name, message string) error {
	res, err := c.exec(ctx, `UPDATE players SET notification = $2 WHERE name = $1`, name, message)
	if err != nil {
		return fmt.Errorf("写入通知失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

// ===== 余额 =====

func (c conn) AdjustBalance(ctx context.Context, playerID int64, money, points int64) (models.Balance, error) {
	bal := models.Balance{PlayerID: playerID}
	err := c.queryRow(ctx,
		`UPDATE players
		 SET money = GREATEST(money + $2, 0), points = GREATEST(points + $3, 0), updated_at = $4
		 WHERE player_id = $1
		 RETURNING money, points`,
		playerID, money, points, toMillis(time.Now())).Scan(&bal.Money, &bal.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return bal, storage.ErrNotFound
	}
	if err != nil {
		return bal, fmt.Errorf("调整余额失败: %w", err)
	}
	return bal, nil
}

func (c conn) DebitIfAffordable(ctx context.Context, playerID int64, amount int64) (models.Balance, bool, error) {
	bal := models.Balance{PlayerID: playerID}
	err := c.queryRow(ctx,
		`UPDATE players SET money = money - $2, updated_at = $3
		 WHERE player_id = $1 AND money >= $2
		 RETURNING money, points`,
		playerID, amount, toMillis(time.Now())).Scan(&bal.Money, &bal.Points)
	if err == nil {
		return bal, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return bal, false, fmt.Errorf("扣款失败: %w", err)
	}

	err = c.queryRow(ctx, `SELECT money, points FROM players WHERE player_id = $1`, playerID).
		Scan(&bal.Money, &bal.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return bal, false, storage.ErrNotFound
	}
	if err != nil {
		return bal, false, err
	}
	return bal, false, nil
}

func (c conn) UpsertBalanceByName(ctx context.Context, name string, money, points int64) (models.Balance, error) {
	var id int64
	err := c.queryRow(ctx, `SELECT player_id FROM players WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		stub := &models.Player{Name: name, Role: models.RolePlayer}
		if err := c.CreatePlayer(ctx, stub); err != nil {
			return models.Balance{}, err
		}
		id = stub.PlayerID
	} else if err != nil {
		return models.Balance{}, err
	}
	return c.AdjustBalance(ctx, id, money, points)
}

func (c conn) ClaimStarterPack(ctx context.Context, playerID int64, amount int64) (bool, error) {
	res, err := c.exec(ctx,
		`UPDATE players SET money = GREATEST($2, 0), starter_pack_taken = TRUE, updated_at = $3
		 WHERE player_id = $1 AND starter_pack_taken = FALSE`,
		playerID, amount, toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("领取新手礼包失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}
	exists, err := c.playerExists(ctx, playerID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

// ===== 收藏 =====

const instanceColumns = `id, owner_id, template_name, health, attack, speed, type, created_at`

func scanInstance(row *sql.Row) (*models.CharacterInstance, error) {
	var (
		inst    models.CharacterInstance
		created int64
	)
	err := row.Scan(&inst.InstanceID, &inst.OwnerID, &inst.Template, &inst.Health, &inst.Attack,
		&inst.Speed, &inst.Type, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inst.CreatedAt = fromMillis(created)
	return &inst, nil
}

func (c conn) FindOwned(ctx context.Context, playerID int64, name string) (*models.OwnedCharacter, error) {
	o := models.OwnedCharacter{Name: name}
	err := c.queryRow(ctx,
		`SELECT id FROM character_instances WHERE owner_id = $1 AND template_name = $2`,
		playerID, name).Scan(&o.InstanceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (c conn) AppendOwned(ctx context.Context, playerID int64, tmpl models.CharacterTemplate) (*models.CharacterInstance, error) {
	exists, err := c.playerExists(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	inst, err := scanInstance(c.queryRow(ctx,
		`INSERT INTO character_instances (owner_id, template_name, health, attack, speed, type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (owner_id, template_name) DO NOTHING
		 RETURNING `+instanceColumns,
		playerID, tmpl.Name, tmpl.Health, tmpl.Attack, tmpl.Speed, tmpl.Type, toMillis(time.Now())))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("创建角色实例失败: %w", err)
	}
	return inst, nil
}

func (c conn) PowerUp(ctx context.Context, instanceID int64, boost models.StatBoost) (*models.CharacterInstance, error) {
	return scanInstance(c.queryRow(ctx,
		`UPDATE character_instances
		 SET health = health + $2, attack = attack + $3, speed = speed + $4
		 WHERE id = $1
		 RETURNING `+instanceColumns,
		instanceID, boost.Health, boost.Attack, boost.Speed))
}

func (c conn) CountOwned(ctx context.Context, playerID int64) (int, error) {
	var n int
	err := c.queryRow(ctx, `SELECT COUNT(*) FROM character_instances WHERE owner_id = $1`, playerID).Scan(&n)
	return n, err
}

func (c conn) SetSelected(ctx context.Context, playerID int64, sel models.SelectedCharacter) error {
	res, err := c.exec(ctx,
		`UPDATE players SET selected_name = $2, selected_instance_id = $3, updated_at = $4 WHERE player_id = $1`,
		playerID, sel.Name, sel.InstanceID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("设置出战角色失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (c conn) GetInstance(ctx context.Context, instanceID int64) (*models.CharacterInstance, error) {
	return scanInstance(c.queryRow(ctx, `SELECT `+instanceColumns+` FROM character_instances WHERE id = $1`, instanceID))
}

// ===== 目录 =====

func (c conn) CreateTemplate(ctx context.Context, t models.CharacterTemplate) error {
	res, err := c.exec(ctx,
		`INSERT INTO character_templates (name, health, attack, speed, type) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO NOTHING`,
		t.Name, t.Health, t.Attack, t.Speed, t.Type)
	if err != nil {
		return fmt.Errorf("创建角色模板失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrConflict
	}
	return nil
}

func (c conn) UpdateTemplate(ctx context.Context, t models.CharacterTemplate) error {
	res, err := c.exec(ctx,
		`UPDATE character_templates SET health = $2, attack = $3, speed = $4, type = $5 WHERE name = $1`,
		t.Name, t.Health, t.Attack, t.Speed, t.Type)
	if err != nil {
		return fmt.Errorf("更新角色模板失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (c conn) GetTemplate(ctx context.Context, name string) (*models.CharacterTemplate, error) {
	var t models.CharacterTemplate
	err := c.queryRow(ctx,
		`SELECT name, health, attack, speed, type FROM character_templates WHERE name = $1`, name).
		Scan(&t.Name, &t.Health, &t.Attack, &t.Speed, &t.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c conn) DeleteTemplate(ctx context.Context, name string) error {
	res, err := c.exec(ctx, `DELETE FROM character_templates WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("删除角色模板失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (c conn) ListTemplates(ctx context.Context) ([]models.CharacterTemplate, error) {
	rows, err := c.query(ctx, `SELECT name, health, attack, speed, type FROM character_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("查询角色模板失败: %w", err)
	}
	defer rows.Close()

	out := []models.CharacterTemplate{}
	for rows.Next() {
		var t models.CharacterTemplate
		if err := rows.Scan(&t.Name, &t.Health, &t.Attack, &t.Speed, &t.Type); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c conn) chestCharacters(ctx context.Context, chest string) ([]string, error) {
	rows, err := c.query(ctx,
		`SELECT character_name FROM chest_characters WHERE chest_name = $1 ORDER BY position`, chest)
	if err != nil {
		return nil, fmt.Errorf("查询宝箱角色失败: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (c conn) CreateChest(ctx context.Context, chest models.Chest) error {
	res, err := c.exec(ctx,
		`INSERT INTO chests (name, price) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		chest.Name, chest.Price)
	if err != nil {
		return fmt.Errorf("创建宝箱失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrConflict
	}
	for i, name := range chest.Characters {
		if _, err := c.exec(ctx,
			`INSERT INTO chest_characters (chest_name, character_name, position) VALUES ($1, $2, $3)
			 ON CONFLICT (chest_name, character_name) DO NOTHING`,
			chest.Name, name, i+1); err != nil {
			return fmt.Errorf("写入宝箱角色失败: %w", err)
		}
	}
	return nil
}

func (c conn) GetChest(ctx context.Context, name string) (*models.Chest, error) {
	chest := models.Chest{Name: name}
	err := c.queryRow(ctx, `SELECT price FROM chests WHERE name = $1`, name).Scan(&chest.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	chest.Characters, err = c.chestCharacters(ctx, name)
	if err != nil {
		return nil, err
	}
	return &chest, nil
}

func (c conn) ListChests(ctx context.Context) ([]models.Chest, error) {
	rows, err := c.query(ctx, `SELECT name, price FROM chests ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("查询宝箱失败: %w", err)
	}
	chests := []models.Chest{}
	for rows.Next() {
		var chest models.Chest
		if err := rows.Scan(&chest.Name, &chest.Price); err != nil {
			rows.Close()
			return nil, err
		}
		chests = append(chests, chest)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chests {
		chests[i].Characters, err = c.chestCharacters(ctx, chests[i].Name)
		if err != nil {
			return nil, err
		}
	}
	return chests, nil
}

func (c conn) DeleteChest(ctx context.Context, name string) error {
	res, err := c.exec(ctx, `DELETE FROM chests WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("删除宝箱失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (c conn) chestExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := c.queryRow(ctx, `SELECT 1 FROM chests WHERE name = $1`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (c conn) AddChestCharacter(ctx context.Context, chest, character string) error {
	exists, err := c.chestExists(ctx, chest)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	res, err := c.exec(ctx,
		`INSERT INTO chest_characters (chest_name, character_name, position)
		 VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM chest_characters WHERE chest_name = $1))
		 ON CONFLICT (chest_name, character_name) DO NOTHING`,
		chest, character)
	if err != nil {
		return fmt.Errorf("添加宝箱角色失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrConflict
	}
	return nil
}

func (c conn) RemoveChestCharacter(ctx context.Context, chest, character string) (bool, error) {
	exists, err := c.chestExists(ctx, chest)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	res, err := c.exec(ctx,
		`DELETE FROM chest_characters WHERE chest_name = $1 AND character_name = $2`, chest, character)
	if err != nil {
		return false, fmt.Errorf("移除宝箱角色失败: %w", err)
	}
	return affected(res)
}

// ===== 好友 =====

func (c conn) GetLink(ctx context.Context, ownerID, otherID int64) (models.LinkState, error) {
	var state string
	err := c.queryRow(ctx,
		`SELECT state FROM friend_links WHERE owner_id = $1 AND other_id = $2`, ownerID, otherID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LinkNone, nil
	}
	if err != nil {
		return models.LinkNone, err
	}
	return models.LinkState(state), nil
}

func (c conn) PutLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) error {
	for _, id := range []int64{ownerID, otherID} {
		exists, err := c.playerExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return storage.ErrNotFound
		}
	}

	res, err := c.exec(ctx,
		`INSERT INTO friend_links (owner_id, other_id, state, seq)
		 VALUES ($1, $2, $3, (SELECT COALESCE(MAX(seq), 0) + 1 FROM friend_links))
		 ON CONFLICT (owner_id, other_id) DO NOTHING`,
		ownerID, otherID, string(state))
	if err != nil {
		return fmt.Errorf("写入好友关系失败: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return err
	}

	cur, err := c.GetLink(ctx, ownerID, otherID)
	if err != nil {
		return err
	}
	if cur == state {
		return nil
	}
	return storage.ErrConflict
}

func (c conn) TransitionLink(ctx context.Context, ownerID, otherID int64, from, to models.LinkState) (bool, error) {
	res, err := c.exec(ctx,
		`UPDATE friend_links SET state = $4, seq = (SELECT COALESCE(MAX(seq), 0) + 1 FROM friend_links)
		 WHERE owner_id = $1 AND other_id = $2 AND state = $3`,
		ownerID, otherID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("更新好友关系失败: %w", err)
	}
	return affected(res)
}

func (c conn) DeleteLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) (bool, error) {
	res, err := c.exec(ctx,
		`DELETE FROM friend_links WHERE owner_id = $1 AND other_id = $2 AND state = $3`,
		ownerID, otherID, string(state))
	if err != nil {
		return false, fmt.Errorf("删除好友关系失败: %w", err)
	}
	return affected(res)
}

func (c conn) CountLinks(ctx context.Context, ownerID int64, state models.LinkState) (int, error) {
	var n int
	err := c.queryRow(ctx,
		`SELECT COUNT(*) FROM friend_links WHERE owner_id = $1 AND state = $2`, ownerID, string(state)).Scan(&n)
	return n, err
}

func (c conn) ListFriendSummaries(ctx context.Context, ownerID int64) ([]models.FriendSummary, error) {
	rows, err := c.query(ctx,
		`SELECT p.player_id, p.name, p.gender, p.points
		 FROM friend_links f JOIN players p ON p.player_id = f.other_id
		 WHERE f.owner_id = $1 AND f.state = $2
		 ORDER BY f.seq`,
		ownerID, string(models.LinkFriend))
	if err != nil {
		return nil, fmt.Errorf("查询好友失败: %w", err)
	}
	defer rows.Close()

	out := []models.FriendSummary{}
	for rows.Next() {
		var s models.FriendSummary
		if err := rows.Scan(&s.PlayerID, &s.Name, &s.Gender, &s.Points); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ===== 对战记录 =====

func (c conn) AppendBattleRecord(ctx context.Context, rec models.BattleRecord) error {
	_, err := c.exec(ctx,
		`INSERT INTO battle_records (id, attacker, defender, battle_round, winner, date)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Attacker, rec.Defender, rec.BattleRound, rec.Winner, toMillis(rec.Date))
	if isUniqueViolation(err) {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("写入对战记录失败: %w", err)
	}
	return nil
}

func (c conn) ListBattleRecords(ctx context.Context, name string) ([]models.BattleRecord, error) {
	rows, err := c.query(ctx,
		`SELECT id, attacker, defender, battle_round, winner, date FROM battle_records
		 WHERE attacker = $1 OR defender = $1
		 ORDER BY date, id`, name)
	if err != nil {
		return nil, fmt.Errorf("查询对战记录失败: %w", err)
	}
	defer rows.Close()

	var out []models.BattleRecord
	for rows.Next() {
		var (
			r    models.BattleRecord
			date int64
		)
		if err := rows.Scan(&r.ID, &r.Attacker, &r.Defender, &r.BattleRound, &r.Winner, &date); err != nil {
			return nil, err
		}
		r.Date = fromMillis(date)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c conn) PurgeBattleRecords(ctx context.Context, attacker string) (int64, error) {
	res, err := c.exec(ctx, `DELETE FROM battle_records WHERE attacker = $1`, attacker)
	if err != nil {
		return 0, fmt.Errorf("清除对战记录失败: %w", err)
	}
	return res.RowsAffected()
}

// ===== 成就 =====

func (c conn) AddAchievement(ctx context.Context, playerID int64, id string) (bool, error) {
	exists, err := c.playerExists(ctx, playerID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	res, err := c.exec(ctx,
		`INSERT INTO achievements (player_id, achievement, granted_at) VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, achievement) DO NOTHING`,
		playerID, id, toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("写入成就失败: %w", err)
	}
	return affected(res)
}
