package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/sroki/internal/reminder"
)

const (
	msgAskText       = "Введите текст напоминания:"
	msgBlankText     = "Текст напоминания не может быть пустым. Введите текст напоминания:"
	msgAskDate       = "Введите дату начала напоминания в формате дд.мм.гггг:"
	msgBadDate       = "Неправильный формат даты. Пожалуйста, введите дату в формате дд.мм.гггг:"
	msgAskUnit       = "Выберите единицу для напоминания:"
	msgBadUnit       = "Неизвестная единица. Пожалуйста, выберите дни, месяцы или недели:"
	msgAdded         = "Напоминание добавлено."
	msgBulkFormat    = "Название_напоминания1 / дата1\nНазвание_напоминания2 / дата2\n..."
	msgAskBulk       = "Введите список напоминаний в формате:\n" + msgBulkFormat
	msgBulkAdded     = "Список напоминаний добавлен."
	msgFailed        = "Что-то пошло не так. Попробуйте ещё раз позже."
	msgCancelled     = "Ввод отменён."
	msgNothingActive = "Нечего отменять."
)

func askQuantity(u reminder.Unit) string {
	return fmt.Sprintf("Введите количество %s:", u)
}

func badQuantity(u reminder.Unit) string {
	return fmt.Sprintf("Неправильный формат количества %s. Пожалуйста, введите целое число от 0 до %d:", u, reminder.MaxQuantity)
}

func badBulk(lines []int) string {
	if len(lines) == 0 {
		return "Список пуст. Пожалуйста, введите список в формате:\n" + msgBulkFormat
	}
	nums := make([]string, len(lines))
	for i, n := range lines {
		nums[i] = strconv.Itoa(n)
	}
	return "Ошибка в формате списка напоминаний (строки: " + strings.Join(nums, ", ") +
		"). Ничего не сохранено. Пожалуйста, введите список в формате:\n" + msgBulkFormat
}

// bulkPartial tells the user which lines made it before storage failed, so a
// retry can leave them out.
func bulkPartial(saved, total int) string {
	return fmt.Sprintf("Что-то пошло не так. Сохранено %d из %d напоминаний (первые строки списка). "+
		"Отправьте заново только оставшиеся строки.", saved, total)
}
