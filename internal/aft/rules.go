package aft

// ruleInput 规则求值时可见的状态
type ruleInput struct {
	record   *Record
	balances Balances
	// autoPlayWasActive 本次请求是否中断了自动游戏
	autoPlayWasActive bool
	// previous 被本次请求替换的上一笔转账
	previous *Record
}

// Rule 命名的前置条件：条件成立即拒绝转账
type Rule struct {
	Name     string
	Violated func(in *ruleInput) bool
	Status   TransferStatus
	Message  string
}

// firstViolation 按顺序求值，返回第一条成立的规则
func firstViolation(rules []Rule, in *ruleInput) (*Rule, bool) {
	for i := range rules {
		if rules[i].Violated(in) {
			return &rules[i], true
		}
	}
	return nil, false
}

// exceedsTransferLimit 全额转账超过转账上限
func exceedsTransferLimit(features FeatureConfiguration) func(in *ruleInput) bool {
	return func(in *ruleInput) bool {
		return in.record.IsFullOnly() && in.record.Amounts.Total() > features.TransferLimit()
	}
}

// clipAmounts 按可兑现、限制性、非限制性的顺序截取到上限，返回是否被截取
func clipAmounts(requested Amounts, limit uint64) (Amounts, bool) {
	if requested.Total() <= limit {
		return requested, false
	}

	remaining := limit
	take := func(amount uint64) uint64 {
		if amount > remaining {
			amount = remaining
		}
		remaining -= amount
		return amount
	}

	return Amounts{
		Cashable:      take(requested.Cashable),
		Restricted:    take(requested.Restricted),
		NonRestricted: take(requested.NonRestricted),
	}, true
}

// clipToBalances 每类金额不超过对应余额
func clipToBalances(requested Amounts, available Amounts) (Amounts, bool) {
	clipped := Amounts{
		Cashable:      min(requested.Cashable, available.Cashable),
		Restricted:    min(requested.Restricted, available.Restricted),
		NonRestricted: min(requested.NonRestricted, available.NonRestricted),
	}
	return clipped, clipped != requested
}
