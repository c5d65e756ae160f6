package commands

import (
	"fmt"

	"caja/internal/core"
)

var codeMessages = map[string]string{
	core.CodeOperatorRequired:    "El nombre del operador es requerido",
	core.CodeNegativeOpening:     "El monto de apertura no puede ser negativo",
	core.CodeNegativeClosing:     "El monto de cierre no puede ser negativo",
	core.CodeConceptRequired:     "El concepto es requerido",
	core.CodeAmountNotPositive:   "El monto debe ser mayor a cero",
	core.CodeInvalidType:         "El tipo de transacción debe ser 'income' o 'expense'",
	core.CodeCategoryName:        "El nombre de la categoría es requerido",
	core.CodeInvalidPaging:       "El límite y el desplazamiento no pueden ser negativos",
	core.CodeInvalidDateRange:    "El rango de fechas no es válido",
	core.CodeActiveSessionExists: "Ya existe una sesión activa. Debe cerrar la sesión actual antes de abrir una nueva.",
	core.CodeNoActiveSession:     "No hay una sesión activa",
	core.CodeSessionNotActive:    "La sesión especificada no está activa",
	core.CodeSessionClosed:       "La sesión ya está cerrada",
	core.CodeSessionStillActive:  "La sesión sigue activa",
	core.CodeSessionNotFound:     "Sesión no encontrada",
	core.CodeTransactionNotFound: "Transacción no encontrada",
	core.CodeCategoryNotFound:    "Categoría no encontrada",
	core.CodeCategoryMismatch:    "La categoría no coincide con el tipo de transacción",
	core.CodeBackupFailed:        "No se pudo crear el respaldo",
	core.CodeBackupNotFound:      "Respaldo no encontrado",
	core.CodeInvalidRequest:      "La solicitud no es válida",
}

var kindMessages = map[core.Kind]string{
	core.KindValidation:        "Datos inválidos",
	core.KindConflict:          "La operación entra en conflicto con el estado actual",
	core.KindNotFound:          "El registro solicitado no existe",
	core.KindInsufficientFunds: "Saldo insuficiente",
	core.KindCategoryMismatch:  "La categoría no coincide con el tipo de transacción",
	core.KindState:             "La operación no es válida en el estado actual",
	core.KindStorage:           "Error de almacenamiento. Intente nuevamente.",
}

// Localize renders err as a message for the operator. Storage details are
// never included; callers log them instead.
func Localize(err error, currency string) string {
	if err == nil {
		return ""
	}
	kind := core.KindOf(err)
	if kind == core.KindInsufficientFunds {
		return fmt.Sprintf("Saldo insuficiente. Balance actual: %s", balanceOf(err).Format(currency))
	}
	if kind == core.KindStorage {
		if core.CodeOf(err) == core.CodeBackupFailed {
			return codeMessages[core.CodeBackupFailed]
		}
		return kindMessages[core.KindStorage]
	}
	if msg, ok := codeMessages[core.CodeOf(err)]; ok {
		return msg
	}
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return "Error inesperado"
}

func balanceOf(err error) core.Money {
	var ce *core.Error
	if asError(err, &ce) {
		return ce.Balance
	}
	return core.Money{}
}
