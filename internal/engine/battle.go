package engine

import (
	"context"
	"log"
	"math"

	"github.com/google/uuid"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/reconcile"
)

// 对战通知
const (
	WinnerNotification = "Congratulations, you won a battle!"
	LoserNotification  = "You are being attacked in the game!"
)

// maxExactRounds 超过后浮点数无法区分相邻回合
const maxExactRounds = 1 << 53

// Combatant 参战角色数值
type Combatant struct {
	Name   string
	Health float64
	Attack float64
	Speed  float64
}

func (c Combatant) damage() float64 {
	return c.Attack * c.Speed
}

// Simulation 模拟结果
type Simulation struct {
	Rounds         int     `json:"rounds"`
	AttackerHealth float64 `json:"attackerHealth"`
	DefenderHealth float64 `json:"defenderHealth"`
}

// roundsToDefeat 每回合受到 dmg 伤害时生命值降到 <= 0 所需的回合数，永远不会倒下时返回 0
func roundsToDefeat(health, dmg float64) int {
	if health <= 0 {
		return 1
	}
	if dmg <= 0 {
		return 0
	}
	n := math.Ceil(health / dmg)
	if n >= maxExactRounds {
		return maxExactRounds
	}
	// 修正除法的舍入误差
	for n > 1 && health-(n-1)*dmg <= 0 {
		n--
	}
	for health-n*dmg > 0 {
		n++
	}
	return int(n)
}

// Simulate 同时结算的回合制模拟：每回合双方都以回合开始时的数值出手，
// 任意一方生命值 <= 0 的回合结束战斗。每回合伤害固定，回合数直接计算得出。
// 双方都无法造成伤害时第一回合后以平局结束
func Simulate(attacker, defender Combatant) Simulation {
	aRounds := roundsToDefeat(attacker.Health, defender.damage())
	dRounds := roundsToDefeat(defender.Health, attacker.damage())

	var rounds int
	switch {
	case aRounds == 0 && dRounds == 0:
		rounds = 1
	case aRounds == 0:
		rounds = dRounds
	case dRounds == 0:
		rounds = aRounds
	default:
		rounds = min(aRounds, dRounds)
	}
	return Simulation{
		Rounds:         rounds,
		AttackerHealth: attacker.Health - float64(rounds)*defender.damage(),
		DefenderHealth: defender.Health - float64(rounds)*attacker.damage(),
	}
}

// BattleOutcome 对战结果
type BattleOutcome string

const (
	OutcomeAttackerWon BattleOutcome = "attacker_won"
	OutcomeDefenderWon BattleOutcome = "defender_won"
	// OutcomeDraw 平局，不产生记录与奖励
	OutcomeDraw BattleOutcome = "draw"
)

// BattleResult 一次对战
type BattleResult struct {
	Outcome  BattleOutcome `json:"outcome"`
	Attacker string        `json:"attacker"`
	Defender string        `json:"defender"`
	Winner   string        `json:"winner,omitempty"`
	Loser    string        `json:"loser,omitempty"`
	Simulation
	Record *models.BattleRecord `json:"record,omitempty"`
	Payout *WriteReport         `json:"payout,omitempty"`
}

func (e *Engine) combatant(ctx context.Context, p *models.Player) (Combatant, error) {
	sel := p.Collection.Selected
	if sel == nil {
		return Combatant{}, ErrCharacterMissing
	}
	inst, err := e.store.GetInstance(ctx, sel.InstanceID)
	if err != nil {
		return Combatant{}, notFound(err, ErrCharacterMissing)
	}
	return Combatant{Name: p.Name, Health: inst.Health, Attack: inst.Attack, Speed: inst.Speed}, nil
}

// ResolveBattle 与随机对手对战。对战不会把生命值写回角色实例
func (e *Engine) ResolveBattle(ctx context.Context, id models.Identity, attackerName string) (*BattleResult, error) {
	if !id.Owns(attackerName) {
		return nil, ErrUnauthorized
	}

	attacker, err := e.store.GetPlayerByName(ctx, attackerName)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	if attacker.Collection.Selected == nil {
		return nil, ErrNoChampionSelected
	}
	defender, err := e.store.SampleOpponent(ctx, attacker.PlayerID)
	if err != nil {
		return nil, notFound(err, ErrNoOpponent)
	}

	a, err := e.combatant(ctx, attacker)
	if err != nil {
		return nil, err
	}
	d, err := e.combatant(ctx, defender)
	if err != nil {
		return nil, err
	}

	sim := Simulate(a, d)
	res := &BattleResult{Attacker: attacker.Name, Defender: defender.Name, Simulation: sim}
	switch {
	case sim.AttackerHealth > sim.DefenderHealth:
		res.Outcome, res.Winner, res.Loser = OutcomeAttackerWon, attacker.Name, defender.Name
	case sim.DefenderHealth > sim.AttackerHealth:
		res.Outcome, res.Winner, res.Loser = OutcomeDefenderWon, defender.Name, attacker.Name
	default:
		res.Outcome = OutcomeDraw
		return res, nil
	}

	rec := models.BattleRecord{
		ID:          uuid.New().String(),
		Attacker:    attacker.Name,
		Defender:    defender.Name,
		BattleRound: sim.Rounds,
		Winner:      res.Winner,
		Date:        e.now(),
	}
	if err := e.store.AppendBattleRecord(ctx, rec); err != nil {
		return nil, err
	}
	res.Record = &rec

	sides := []reconcile.Repair{
		reconcile.Payout(res.Winner, e.cfg.WinMoney, e.cfg.WinPoints, WinnerNotification, models.AchievementFirstWin),
		reconcile.Penalty(res.Loser, e.cfg.LossPoints, LoserNotification),
	}
	report, err := e.dualWrite(ctx, sides...)
	if err != nil {
		// 记录已写入，两侧结算都失败时整体交给修复队列
		log.Printf("对战 %s 结算失败: %v", rec.ID, err)
		report = WriteReport{Outcome: OutcomePartial}
		for _, side := range sides {
			side.Attempts = 1
			if qerr := e.repairs.Push(ctx, side); qerr != nil {
				log.Printf("加入修复队列失败 %s: %v", side.ID, qerr)
				continue
			}
			report.Repairs = append(report.Repairs, side.ID)
		}
	}
	res.Payout = &report

	e.publish(res.Winner, WinnerNotification)
	e.publish(res.Loser, LoserNotification)
	e.afterBattle(ctx, res.Winner, res.Loser)
	return res, nil
}

// BattleHistory 查询玩家作为攻方或守方的对战记录
func (e *Engine) BattleHistory(ctx context.Context, id models.Identity, name string) ([]models.BattleRecord, error) {
	if !id.Owns(name) && !id.IsAdmin() {
		return nil, ErrUnauthorized
	}
	records, err := e.store.ListBattleRecords(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoBattleRecords
	}
	return records, nil
}

// PurgeBattleRecords 删除攻方为 attacker 的全部记录
func (e *Engine) PurgeBattleRecords(ctx context.Context, id models.Identity, attacker string) (int64, error) {
	if !id.IsAdmin() {
		return 0, ErrUnauthorized
	}
	return e.store.PurgeBattleRecords(ctx, attacker)
}

// Leaderboard 读取排行榜，不产生副作用
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return e.ranker.Top(ctx, limit)
}
