package service

import (
	"context"
	"errors"
	"testing"

)

func TestResolveSetting_DefaultPersistsOnce(t *testing.T) {
	// 通道敏感度 1 < 类型默认阈值 2 → 默认打开
	mb := &mockBackend{mediumID: 'x', label: "push", sensitivity: 1}
	env := newTestEnv(t, withBackends(mb))
	ctx := context.Background()

	env.addUser(1, "alice", "alice@example.com")
	nt := env.addNoticeType(t, "friends_invite", 2)

	setting, err := env.svc.Preference.ResolveSetting(ctx, 1, nt, 'x')
	if err != nil {
		t.Fatalf("ResolveSetting 失败: %v", err)
	}
	if !setting.Send {
		t.Error("敏感度 1 <= 默认阈值 2，默认应为开")
	}
	if env.settings.createCalls != 1 {
		t.Errorf("createCalls = %d, 期望 1", env.settings.createCalls)
	}

	// 二次解析命中已有行，不再落库
	again, err := env.svc.Preference.ResolveSetting(ctx, 1, nt, 'x')
	if err != nil {
		t.Fatalf("二次 ResolveSetting 失败: %v", err)
	}
	if again.ID != setting.ID {
		t.Errorf("二次解析 ID = %d, 期望复用 %d", again.ID, setting.ID)
	}
	if env.settings.createCalls != 1 {
		t.Errorf("二次解析后 createCalls = %d, 期望仍为 1", env.settings.createCalls)
	}
}

func TestResolveSetting_SensitivityRule(t *testing.T) {
	// 敏感度 3 > 默认阈值 2 → 默认关闭
	mb := &mockBackend{mediumID: 'e', label: "email", sensitivity: 3}
	env := newTestEnv(t, withBackends(mb))
	ctx := context.Background()

	env.addUser(1, "alice", "alice@example.com")
	nt := env.addNoticeType(t, "friends_invite", 2)

	setting, err := env.svc.Preference.ResolveSetting(ctx, 1, nt, 'e')
	if err != nil {
		t.Fatalf("ResolveSetting 失败: %v", err)
	}
	if setting.Send {
		t.Error("敏感度 3 > 默认阈值 2，默认应为关")
	}
}

func TestResolveSetting_UnknownMedium(t *testing.T) {
	env := newTestEnv(t, withBackends(&mockBackend{mediumID: 'e', label: "email", sensitivity: 2}))
	nt := env.addNoticeType(t, "friends_invite", 2)

	_, err := env.svc.Preference.ResolveSetting(context.Background(), 1, nt, 'z')
	if !errors.Is(err, ErrUnknownMedium) {
		t.Errorf("err = %v, 期望 ErrUnknownMedium", err)
	}
}

func TestUpdateSetting_OverridesDefault(t *testing.T) {
	mb := &mockBackend{mediumID: 'e', label: "email", sensitivity: 3}
	env := newTestEnv(t, withBackends(mb))
	ctx := context.Background()

	env.addUser(1, "alice", "alice@example.com")
	nt := env.addNoticeType(t, "friends_invite", 2)

	// 默认为关，显式打开
	if err := env.svc.Preference.UpdateSetting(ctx, 1, nt, 'e', true); err != nil {
		t.Fatalf("UpdateSetting 失败: %v", err)
	}

	send, err := env.svc.Preference.ShouldSend(ctx, 1, nt, 'e')
	if err != nil {
		t.Fatalf("ShouldSend 失败: %v", err)
	}
	if !send {
		t.Error("显式打开后 ShouldSend 应为 true")
	}
}

func TestSettingsTable_MatrixShape(t *testing.T) {
	fb := &mockBackend{mediumID: 'f', label: "feed", sensitivity: 1}
	eb := &mockBackend{mediumID: 'e', label: "email", sensitivity: 3}
	env := newTestEnv(t, withBackends(fb, eb))
	ctx := context.Background()

	env.addUser(1, "alice", "alice@example.com")
	env.addNoticeType(t, "comment_reply", 2)
	env.addNoticeType(t, "friends_invite", 2)

	table, err := env.svc.Preference.SettingsTable(ctx, 1)
	if err != nil {
		t.Fatalf("SettingsTable 失败: %v", err)
	}

	if len(table.ColumnHeaders) != 2 || table.ColumnHeaders[0] != "feed" || table.ColumnHeaders[1] != "email" {
		t.Errorf("ColumnHeaders = %v, 期望 [feed email]", table.ColumnHeaders)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, 期望 2", len(table.Rows))
	}

	row := table.Rows[1] // friends_invite，label 排序在后
	if row.Label != "friends_invite" {
		t.Fatalf("Rows[1].Label = %q, 期望 friends_invite", row.Label)
	}
	if row.Cells[0].FormLabel != "friends_invite_f" || row.Cells[1].FormLabel != "friends_invite_e" {
		t.Errorf("FormLabel = [%q %q], 期望 [friends_invite_f friends_invite_e]",
			row.Cells[0].FormLabel, row.Cells[1].FormLabel)
	}
	// feed 敏感度 1 默认开，email 敏感度 3 默认关
	if !row.Cells[0].Send || row.Cells[1].Send {
		t.Errorf("Cells Send = [%v %v], 期望 [true false]", row.Cells[0].Send, row.Cells[1].Send)
	}
}

func TestApplySettingsForm(t *testing.T) {
	fb := &mockBackend{mediumID: 'f', label: "feed", sensitivity: 1}
	eb := &mockBackend{mediumID: 'e', label: "email", sensitivity: 3}
	env := newTestEnv(t, withBackends(fb, eb))
	ctx := context.Background()

	env.addUser(1, "alice", "alice@example.com")
	nt := env.addNoticeType(t, "friends_invite", 2)

	changed, err := env.svc.Preference.ApplySettingsForm(ctx, 1, map[string]bool{
		"friends_invite_f": false, // 默认开 → 关
		"friends_invite_e": false, // 默认关 → 无变更
	})
	if err != nil {
		t.Fatalf("ApplySettingsForm 失败: %v", err)
	}
	if !changed {
		t.Error("feed 偏好翻转，changed 应为 true")
	}

	send, err := env.svc.Preference.ShouldSend(ctx, 1, nt, 'f')
	if err != nil {
		t.Fatalf("ShouldSend 失败: %v", err)
	}
	if send {
		t.Error("表单关闭后 feed 偏好应为关")
	}

	// 同一表单重复提交无变更
	changed, err = env.svc.Preference.ApplySettingsForm(ctx, 1, map[string]bool{
		"friends_invite_f": false,
		"friends_invite_e": false,
	})
	if err != nil {
		t.Fatalf("重复提交失败: %v", err)
	}
	if changed {
		t.Error("重复提交相同表单不应有变更")
	}
}

func TestUnsubscribe_RoundTrip(t *testing.T) {
	eb := &mockBackend{mediumID: 'e', label: "email", sensitivity: 1}
	env := newTestEnv(t, withBackends(eb))
	ctx := context.Background()

	env.addUser(7, "bob", "bob@example.com")
	nt := env.addNoticeType(t, "friends_invite", 2)

	// 先确认默认偏好为开
	send, err := env.svc.Preference.ShouldSend(ctx, 7, nt, 'e')
	if err != nil || !send {
		t.Fatalf("前置偏好异常: send=%v err=%v", send, err)
	}

	token, err := env.signer.SignUnsubscribe(7)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}
	if err := env.svc.Preference.Unsubscribe(ctx, "email", token); err != nil {
		t.Fatalf("Unsubscribe 失败: %v", err)
	}

	send, err = env.svc.Preference.ShouldSend(ctx, 7, nt, 'e')
	if err != nil {
		t.Fatalf("退订后 ShouldSend 失败: %v", err)
	}
	if send {
		t.Error("退订后该通道偏好应全部关闭")
	}
}

func TestUnsubscribe_InvalidToken(t *testing.T) {
	eb := &mockBackend{mediumID: 'e', label: "email", sensitivity: 1}
	env := newTestEnv(t, withBackends(eb))
	ctx := context.Background()

	env.addUser(7, "bob", "bob@example.com")

	token, err := env.signer.SignUnsubscribe(7)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	// 篡改令牌
	tampered := token[:len(token)-2] + "xx"
	if err := env.svc.Preference.Unsubscribe(ctx, "email", tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("篡改令牌 err = %v, 期望 ErrInvalidToken", err)
	}

	if err := env.svc.Preference.Unsubscribe(ctx, "email", "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("乱码令牌 err = %v, 期望 ErrInvalidToken", err)
	}
}

func TestUnsubscribe_UnknownMediumAndMissingUser(t *testing.T) {
	eb := &mockBackend{mediumID: 'e', label: "email", sensitivity: 1}
	env := newTestEnv(t, withBackends(eb))
	ctx := context.Background()

	env.addUser(7, "bob", "bob@example.com")
	token, err := env.signer.SignUnsubscribe(7)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}
	if err := env.svc.Preference.Unsubscribe(ctx, "pigeon", token); !errors.Is(err, ErrUnknownMedium) {
		t.Errorf("未知通道 err = %v, 期望 ErrUnknownMedium", err)
	}

	// 令牌有效但用户已不存在
	ghost, err := env.signer.SignUnsubscribe(99)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}
	if err := env.svc.Preference.Unsubscribe(ctx, "email", ghost); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("用户不存在 err = %v, 期望 ErrUserNotFound", err)
	}
}
