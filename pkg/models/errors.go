package models

import (
	"errors"
)

// Ошибки домена. Репозитории и сервисы оборачивают их через %w,
// вызывающая сторона проверяет через errors.Is.
var (
	// ErrNotFound — запись не найдена (пользователь, инвестиция, транзакция, уровень)
	ErrNotFound = errors.New("запись не найдена")

	// ErrInvalidAmount — сумма заявки не положительна
	ErrInvalidAmount = errors.New("сумма должна быть положительной")

	// ErrMinFirstDeposit — первый депозит меньше минимально допустимого
	ErrMinFirstDeposit = errors.New("первый депозит меньше минимальной суммы")

	// ErrSelfReferral — пользователь пытается пригласить сам себя
	ErrSelfReferral = errors.New("пользователь не может пригласить сам себя")

	// ErrInvalidReferralCode — реферальный код не найден
	ErrInvalidReferralCode = errors.New("неверный реферальный код")

	// ErrAlreadyConfirmed — транзакция уже обработана администратором
	ErrAlreadyConfirmed = errors.New("транзакция уже подтверждена")
)
