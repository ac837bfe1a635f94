package osutil

import (
	"fmt"
	"os"

	"github.com/csudata/clup-agent/pkg/rpcwire"
)

// Handlers binds every osutil RPC method. None of them dial a peer or
// hold state, so Handlers carries none either.
type Handlers struct{}

func NewHandlers() *Handlers { return &Handlers{} }

type pathArgs struct {
	Path string
}

func (h *Handlers) HandleCopyFile(args []byte) (int, []byte) {
	var a struct{ SrcFile, DstFile string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := CopyFile(a.SrcFile, a.DstFile); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleDeleteFile(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if !PathExists(a.Path) {
		return errReply(1, "file not exists")
	}
	if err := DeleteFile(a.Path); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleChangeFileName(args []byte) (int, []byte) {
	var a struct{ OldFile, NewFile string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if !PathExists(a.OldFile) {
		return errReply(1, "file not exists")
	}
	if err := Rename(a.OldFile, a.NewFile); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleOsPathExists(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	out, _ := rpcwire.EncodeArgs(PathExists(a.Path))
	return 0, out
}

func (h *Handlers) HandlePathIsDir(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	out, _ := rpcwire.EncodeArgs(PathIsDir(a.Path))
	return 0, out
}

func (h *Handlers) HandleDirIsEmpty(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	empty, err := DirIsEmpty(a.Path)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(empty)
	return 0, out
}

func (h *Handlers) HandleOsListdir(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	entries, err := ListDir(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			out, _ := rpcwire.EncodeArgs([]DirEntry(nil))
			return 0, out
		}
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(entries)
	return 0, out
}

func (h *Handlers) HandleOsStat(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	st, err := Stat(a.Path)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(st)
	return 0, out
}

func (h *Handlers) HandleOsChown(args []byte) (int, []byte) {
	var a struct {
		Path     string
		Uid, Gid int
	}
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := Chown(a.Path, a.Uid, a.Gid); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleOsChmod(args []byte) (int, []byte) {
	var a struct {
		Path string
		Mode uint32
	}
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := Chmod(a.Path, os.FileMode(a.Mode)); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleOsMakedirs(args []byte) (int, []byte) {
	var a struct {
		Path string
		Mode uint32
	}
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	mode := a.Mode
	if mode == 0 {
		mode = 0o755
	}
	if err := Makedirs(a.Path, os.FileMode(mode)); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleOsReadlink(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	target, err := Readlink(a.Path)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(target)
	return 0, out
}

func (h *Handlers) HandleOsRealPath(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	target, err := RealPath(a.Path)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(target)
	return 0, out
}

func (h *Handlers) HandleOsRename(args []byte) (int, []byte) {
	var a struct{ OldPath, NewPath string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := Rename(a.OldPath, a.NewPath); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleOsKill(args []byte) (int, []byte) {
	var a struct{ Pid, Signal int }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := Kill(a.Pid, a.Signal); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleGetChildPidList(args []byte) (int, []byte) {
	var a struct{ Pid int }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	children, err := ChildPIDs(a.Pid)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(children)
	return 0, out
}

func (h *Handlers) HandleFileRead(args []byte) (int, []byte) {
	var a struct {
		Path   string
		Offset int64
		Length int
	}
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	data, err := ReadFile(a.Path, a.Offset, a.Length)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(data)
	return 0, out
}

func (h *Handlers) HandleFileWrite(args []byte) (int, []byte) {
	var a struct {
		Path   string
		Offset int64
		Data   []byte
	}
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := WriteFile(a.Path, a.Offset, a.Data); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleAppendFile(args []byte) (int, []byte) {
	var a struct {
		Path string
		Data []byte
	}
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := AppendFile(a.Path, a.Data); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleMktemp(args []byte) (int, []byte) {
	var a struct{ Dir, Pattern string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	name, err := Mktemp(a.Dir, a.Pattern)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(name)
	return 0, out
}

func (h *Handlers) HandleGetFileSize(args []byte) (int, []byte) {
	var a pathArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	size, err := GetFileSize(a.Path)
	if err != nil {
		out, _ := rpcwire.EncodeArgs(int64(-1))
		return 0, out
	}
	out, _ := rpcwire.EncodeArgs(size)
	return 0, out
}

func (h *Handlers) HandleReceiveFile(args []byte) (int, []byte) {
	var a struct {
		FileName string
		Content  []byte
	}
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := ReceiveFile(a.FileName, a.Content); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleExtractFile(args []byte) (int, []byte) {
	var a struct{ TarPath, DestDir string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := ExtractFile(a.TarPath, a.DestDir); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandlePwdGetpwnam(args []byte) (int, []byte) {
	var a struct{ Name string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	pw, err := PwdGetpwnam(a.Name)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(pw)
	return 0, out
}

func (h *Handlers) HandlePwdGetpwuid(args []byte) (int, []byte) {
	var a struct{ Uid int }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	pw, err := PwdGetpwuid(a.Uid)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(pw)
	return 0, out
}

func (h *Handlers) HandleGrpGetgrall(args []byte) (int, []byte) {
	groups, err := GrpGetgrall()
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(groups)
	return 0, out
}

func (h *Handlers) HandleOsUserExists(args []byte) (int, []byte) {
	var a struct{ OsUser string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	out, _ := rpcwire.EncodeArgs(OsUserExists(a.OsUser))
	return 0, out
}

func (h *Handlers) HandleOsUidExists(args []byte) (int, []byte) {
	var a struct{ Uid int }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	out, _ := rpcwire.EncodeArgs(OsUidExists(a.Uid))
	return 0, out
}

func (h *Handlers) HandleRunCmd(args []byte) (int, []byte) {
	var a struct{ Cmd string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	return RunCmd(a.Cmd), nil
}

func (h *Handlers) HandleRunCmdResult(args []byte) (int, []byte) {
	var a struct{ Cmd string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	errCode, errMsg, outMsg := RunCmdResult(a.Cmd)
	out, _ := rpcwire.EncodeArgs(struct{ ErrMsg, OutMsg string }{errMsg, outMsg})
	return errCode, out
}

func (h *Handlers) HandleSendToExec(args []byte) (int, []byte) {
	var a struct{ Cmd, Data string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	errCode, errMsg, outMsg := SendToExec(a.Cmd, a.Data)
	out, _ := rpcwire.EncodeArgs(struct{ ErrMsg, OutMsg string }{errMsg, outMsg})
	return errCode, out
}

func (h *Handlers) HandleGetAgentVersion(args []byte) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(GetAgentVersion())
	return 0, out
}

func (h *Handlers) HandleCheckOSEnv(args []byte) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(CheckOSEnv())
	return 0, out
}

func (h *Handlers) HandleGetDataDiskUse(args []byte) (int, []byte) {
	var a struct{ Directory string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	use, err := GetDataDiskUse(a.Directory)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(use)
	return 0, out
}

func (h *Handlers) HandleCheckPortUsed(args []byte) (int, []byte) {
	var a struct{ Port int }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	used, err := CheckPortUsed(a.Port)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(used)
	return 0, out
}

func (h *Handlers) HandleGetPgBinPathList(args []byte) (int, []byte) {
	var a struct{ Globs []string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	paths, err := GetPgBinPathList(a.Globs)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(paths)
	return 0, out
}

func (h *Handlers) HandleVipExists(args []byte) (int, []byte) {
	var a struct{ Vip string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	exists, err := VipExists(a.Vip)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(exists)
	return 0, out
}

func (h *Handlers) HandleCheckAndAddVip(args []byte) (int, []byte) {
	var a struct{ Vip string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := CheckAndAddVIP(a.Vip); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleCheckAndDelVip(args []byte) (int, []byte) {
	var a struct{ Vip string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := CheckAndDelVIP(a.Vip); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleMountDev(args []byte) (int, []byte) {
	var a struct{ DevPath, MountPath string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := MountDev(a.DevPath, a.MountPath); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleUmountDev(args []byte) (int, []byte) {
	var a struct{ MountPath string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := UmountDev(a.MountPath); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleCheckIsMount(args []byte) (int, []byte) {
	var a struct{ MountPath string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	mounted, err := CheckIsMount(a.MountPath)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(mounted)
	return 0, out
}

func (h *Handlers) HandleCheckAndMount(args []byte) (int, []byte) {
	var a struct{ DevPath, MountPath string }
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := CheckAndMount(a.DevPath, a.MountPath); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

func (h *Handlers) HandleRestartAgent(args []byte) (int, []byte) {
	errCode, errMsg := RestartAgent()
	if errCode != 0 {
		return errReply(errCode, errMsg)
	}
	return 0, nil
}

func errReply(code int, msg string) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(msg)
	return code, out
}
